package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/vpportal/vpportal/frontend/internal/apiclient"
	"github.com/vpportal/vpportal/frontend/internal/dashboard"
	"github.com/vpportal/vpportal/frontend/internal/session"
	"github.com/vpportal/vpportal/shared/api"
	"github.com/vpportal/vpportal/shared/logger"
)

const usage = `usage: dashboard [flags] <command> [args]

commands:
  register         stage a registration and receive an OTP by email
  verify           confirm the OTP and log in
  resend-otp       send a new OTP
  login            log in with email and password
  logout           forget the stored session
  forgot-password  email a password reset link
  reset-password   set a new password with the token from the link
  whoami           show the signed-in profile
  watch            live request table, refreshed every poll interval
  requests         interactive request dashboard

flags:
`

type app struct {
	client   *apiclient.APIClient
	sessions *session.FileStore
	interval time.Duration
	in       *bufio.Scanner
	out      io.Writer
}

func main() {
	_ = godotenv.Load()

	apiURL := flag.String("api", envOr("VPPORTAL_API", "http://localhost:5000/api"), "backend API base url")
	sessionPath := flag.String("session", session.DefaultPath(), "session file")
	interval := flag.Duration("interval", dashboard.DefaultPollInterval, "request poll interval")
	logLevel := flag.String("log_level", "warn", "log level")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	logger.InitializeWithWriter(os.Stderr, *logLevel, false)

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &app{
		client:   apiclient.New(strings.TrimRight(*apiURL, "/")),
		sessions: session.NewFileStore(*sessionPath),
		interval: *interval,
		in:       bufio.NewScanner(os.Stdin),
		out:      os.Stdout,
	}
	if err := a.run(ctx, flag.Arg(0), flag.Args()[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func (a *app) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "register":
		return a.register(ctx, args)
	case "verify":
		return a.verify(ctx, args)
	case "resend-otp":
		return a.resendOTP(ctx, args)
	case "login":
		return a.login(ctx, args)
	case "logout":
		if err := a.sessions.Clear(); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Logged out.")
		return nil
	case "forgot-password":
		return a.forgotPassword(ctx, args)
	case "reset-password":
		return a.resetPassword(ctx, args)
	case "whoami":
		return a.whoami(ctx)
	case "watch":
		return a.watch(ctx)
	case "requests":
		return a.requests(ctx)
	default:
		return fmt.Errorf("unknown command %q, run with -h for help", command)
	}
}

func (a *app) register(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	var body api.RegisterRequest
	fs.StringVar(&body.Name, "name", "", "full name")
	fs.StringVar(&body.Email, "email", "", "institutional email")
	fs.StringVar(&body.Role, "role", "", "role")
	fs.StringVar(&body.School, "school", "", "school")
	fs.StringVar(&body.Phone, "phone", "", "phone")
	if err := fs.Parse(args); err != nil {
		return err
	}
	body.Name = a.orPrompt(body.Name, "Name")
	body.Email = a.orPrompt(body.Email, "Email")
	body.Password = a.prompt("Password")

	resp, err := a.client.Register(ctx, body)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, resp.Message)
	fmt.Fprintf(a.out, "Run: dashboard verify -email %s\n", resp.Email)
	return nil
}

func (a *app) verify(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	email := fs.String("email", "", "email the OTP was sent to")
	otp := fs.String("otp", "", "one-time passcode")
	if err := fs.Parse(args); err != nil {
		return err
	}

	resp, err := a.client.VerifyEmail(ctx, a.orPrompt(*email, "Email"), a.orPrompt(*otp, "OTP"))
	if err != nil {
		return err
	}
	return a.saveSession(resp)
}

func (a *app) resendOTP(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("resend-otp", flag.ContinueOnError)
	email := fs.String("email", "", "email")
	if err := fs.Parse(args); err != nil {
		return err
	}
	resp, err := a.client.ResendOTP(ctx, a.orPrompt(*email, "Email"))
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, resp.Message)
	return nil
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "email")
	if err := fs.Parse(args); err != nil {
		return err
	}
	resp, err := a.client.Login(ctx, a.orPrompt(*email, "Email"), a.prompt("Password"))
	if err != nil {
		return err
	}
	return a.saveSession(resp)
}

func (a *app) forgotPassword(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("forgot-password", flag.ContinueOnError)
	email := fs.String("email", "", "email")
	if err := fs.Parse(args); err != nil {
		return err
	}
	resp, err := a.client.ForgotPassword(ctx, a.orPrompt(*email, "Email"))
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, resp.Message)
	return nil
}

func (a *app) resetPassword(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reset-password", flag.ContinueOnError)
	token := fs.String("token", "", "token from the reset link")
	if err := fs.Parse(args); err != nil {
		return err
	}
	raw := a.orPrompt(*token, "Reset token")
	// accept the whole link as well as the bare token
	if i := strings.LastIndex(raw, "/reset-password/"); i >= 0 {
		raw = raw[i+len("/reset-password/"):]
	}

	resp, err := a.client.ResetPassword(ctx, raw, a.prompt("New password"))
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, resp.Message)
	return a.saveSession(resp)
}

func (a *app) whoami(ctx context.Context) error {
	sess, err := a.sessions.Load()
	if err != nil {
		return err
	}
	user, err := a.client.Me(ctx, sess.Token)
	if apiclient.IsUnauthorized(err) {
		_ = a.sessions.Clear()
		return dashboard.ErrSessionExpired
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s <%s>\nrole: %s\nschool: %s\nphone: %s\n", user.Name, user.Email, user.Role, user.School, user.Phone)
	return nil
}

// watch redraws the table after every poll until interrupted.
func (a *app) watch(ctx context.Context) error {
	d, err := a.openDashboard()
	if err != nil {
		return err
	}
	d.OnChange = func() {
		fmt.Fprint(a.out, "\x1b[H\x1b[2J")
		if err := d.Render(a.out, true); err != nil {
			logger.Log.Error("render failed", "error", err)
		}
	}
	return d.Run(ctx)
}

const requestsHelp = `commands: list | new | edit <request id> | cancel | refresh | quit`

func (a *app) requests(ctx context.Context) error {
	d, err := a.openDashboard()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	pollErr := make(chan error, 1)
	go func() { pollErr <- d.Run(ctx) }()

	fmt.Fprintln(a.out, requestsHelp)
	for {
		select {
		case err := <-pollErr:
			return err
		default:
		}

		line, ok := a.readLine("> ")
		if !ok {
			return nil
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "list", "l":
			err = d.Render(a.out, true)
		case "refresh", "r":
			if err = d.Refresh(ctx); err == nil {
				err = d.Render(a.out, true)
			}
		case "new", "n":
			d.ClearSelection()
			err = a.submit(ctx, d)
		case "edit", "e":
			if len(fields) < 2 {
				fmt.Fprintln(a.out, "usage: edit <request id>")
				continue
			}
			selected, selErr := d.Select(fields[1])
			if selErr != nil {
				err = selErr
				break
			}
			fmt.Fprintf(a.out, "Editing %s (%s)\n", selected.RequestId, selected.Status)
			err = a.submit(ctx, d)
		case "cancel":
			d.ClearSelection()
		case "quit", "q", "exit":
			return nil
		default:
			fmt.Fprintln(a.out, requestsHelp)
		}

		if errors.Is(err, dashboard.ErrSessionExpired) {
			return err
		}
		if err != nil {
			fmt.Fprintln(a.out, "error:", err)
		}
		err = nil
	}
}

func (a *app) submit(ctx context.Context, d *dashboard.Dashboard) error {
	subject := a.prompt("Subject")
	description := a.prompt("Description")
	saved, err := d.Submit(ctx, subject, description)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Saved %s (%s)\n", saved.RequestId, saved.Status)
	return nil
}

func (a *app) openDashboard() (*dashboard.Dashboard, error) {
	sess, err := a.sessions.Load()
	if err != nil {
		return nil, err
	}
	return dashboard.New(a.client, a.sessions, sess.Token, a.interval), nil
}

func (a *app) saveSession(resp api.AuthResponse) error {
	sess := session.Session{Token: resp.Token}
	if resp.User != nil {
		sess.User = *resp.User
	}
	if err := a.sessions.Save(sess); err != nil {
		return err
	}
	if resp.Message != "" {
		fmt.Fprintln(a.out, resp.Message)
	}
	fmt.Fprintf(a.out, "Logged in as %s.\n", sess.User.Email)
	return nil
}

func (a *app) orPrompt(value, label string) string {
	if value != "" {
		return value
	}
	return a.prompt(label)
}

func (a *app) prompt(label string) string {
	line, _ := a.readLine(label + ": ")
	return strings.TrimSpace(line)
}

func (a *app) readLine(prompt string) (string, bool) {
	fmt.Fprint(a.out, prompt)
	if !a.in.Scan() {
		return "", false
	}
	return a.in.Text(), true
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
