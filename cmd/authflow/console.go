package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/panyam/authflow"
)

const consoleHelp = `commands:
  email <value>      set the email field
  password <value>   set the password field
  confirm <value>    set the confirm password field (signup)
  submit             submit the form
  signup             go to the signup form
  login              go back to the login form
  logout             sign out
  quit               leave`

// liveForm is what the console needs from LoginForm and SignUpForm
type liveForm interface {
	UpdateField(name, value string)
	State() authflow.FormState
	Submit(ctx context.Context) *authflow.Submission
}

// console renders the App to a terminal and turns typed lines into intents.
type console struct {
	app *authflow.App
	out io.Writer
}

func newConsole(app *authflow.App, out io.Writer) *console {
	return &console{app: app, out: out}
}

func (c *console) run(ctx context.Context, in io.Reader) error {
	c.render()

	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(c.out, "> ")
		if !sc.Scan() {
			fmt.Fprintln(c.out)
			return sc.Err()
		}
		if quit := c.handle(ctx, sc.Text()); quit {
			return nil
		}
		c.render()
	}
}

func (c *console) liveForm() (liveForm, bool) {
	if f := c.app.LoginForm(); f != nil {
		return f, true
	}
	if f := c.app.SignUpForm(); f != nil {
		return f, true
	}
	return nil, false
}

func (c *console) handle(ctx context.Context, line string) (quit bool) {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)

	var err error
	switch strings.ToLower(cmd) {
	case "":
	case "quit", "exit":
		return true
	case "help":
		fmt.Fprintln(c.out, consoleHelp)
	case "email":
		err = c.setField(authflow.FieldEmail, arg)
	case "password":
		err = c.setField(authflow.FieldPassword, arg)
	case "confirm":
		err = c.setField(authflow.FieldConfirmPassword, arg)
	case "submit":
		err = c.submit(ctx)
	case "signup":
		err = c.app.GoToSignup()
	case "login":
		err = c.app.GoToLogin()
	case "logout":
		err = c.app.SignOut(ctx)
	default:
		err = fmt.Errorf("unknown command %q, type help", cmd)
	}

	if err != nil {
		fmt.Fprintf(c.out, "! %v\n", err)
	}
	return false
}

var errNoForm = errors.New("no form is shown")

func (c *console) setField(name, value string) error {
	f, ok := c.liveForm()
	if !ok {
		return errNoForm
	}
	if _, known := f.State().Fields[name]; !known {
		return fmt.Errorf("this form has no %s field", name)
	}
	f.UpdateField(name, value)
	return nil
}

func (c *console) submit(ctx context.Context) error {
	f, ok := c.liveForm()
	if !ok {
		return errNoForm
	}
	sub := f.Submit(ctx)
	if sub == nil {
		return nil
	}
	fmt.Fprintln(c.out, "Loading...")
	// the form state already carries the failure text
	_ = sub.Wait()
	return nil
}

func (c *console) render() {
	s := c.app.Session()
	var b strings.Builder

	switch s.Phase {
	case authflow.PhaseLoading:
		b.WriteString("Loading...\n")
	case authflow.PhaseLoggedIn:
		fmt.Fprintf(&b, "%s\n[logout] log out\n", s.Greeting())
	case authflow.PhaseShowLogin:
		if f := c.app.LoginForm(); f != nil {
			renderForm(&b, "Login", f.State(), "[signup] create an account")
		}
	case authflow.PhaseShowSignup:
		if f := c.app.SignUpForm(); f != nil {
			renderForm(&b, "Sign up", f.State(), "[login] back to login")
		}
	}

	fmt.Fprint(c.out, b.String())
}

func renderForm(b *strings.Builder, title string, st authflow.FormState, link string) {
	fmt.Fprintf(b, "== %s ==\n", title)
	fmt.Fprintf(b, "  email:    %s\n", st.Field(authflow.FieldEmail))
	fmt.Fprintf(b, "  password: %s\n", mask(st.Field(authflow.FieldPassword)))
	if _, ok := st.Fields[authflow.FieldConfirmPassword]; ok {
		fmt.Fprintf(b, "  confirm:  %s\n", mask(st.Field(authflow.FieldConfirmPassword)))
	}
	if st.Submitting {
		b.WriteString("Loading...\n")
	}
	if st.Error != "" {
		for _, line := range strings.Split(st.Error, "\n") {
			fmt.Fprintf(b, "  %s\n", line)
		}
	}
	fmt.Fprintf(b, "%s\n", link)
}

func mask(s string) string {
	return strings.Repeat("*", len(s))
}
