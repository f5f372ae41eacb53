package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/plashr/plashr/pkg/auth"
	"github.com/plashr/plashr/pkg/message"
	"github.com/spf13/cobra"
)

const callbackPage = `<!doctype html><title>plashr</title><p>Signed in. You can close this window.</p>`

func newLoginCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in to like photos and manage collections",
		Long: `Sign in with the OAuth authorization code flow. plashr prints a URL
to open in a browser and waits for the redirect on api.redirect_url.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := s.open(cmd)
			if err != nil {
				return err
			}
			if err := a.Config.RequireOAuth(); err != nil {
				return err
			}

			redirect, err := url.Parse(a.Config.API.RedirectURL)
			if err != nil || redirect.Host == "" {
				return fmt.Errorf("invalid api.redirect_url %q", a.Config.API.RedirectURL)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), auth.StateTTL)
			defer cancel()

			authURL, state, err := a.Auth.AuthCodeURL(ctx)
			if err != nil {
				return err
			}

			ln, err := net.Listen("tcp", redirect.Host)
			if err != nil {
				return fmt.Errorf("listen for oauth callback: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Open this URL in your browser to sign in:\n\n  %s\n\n", authURL)

			code, err := awaitCallback(ctx, ln, redirect.Path, state)
			if err != nil {
				return err
			}
			if _, err := a.Auth.Exchange(ctx, state, code); err != nil {
				return err
			}

			api, err := s.api(cmd)
			if err != nil {
				return err
			}
			me, err := api.Me(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), s.messages().Sprintf(message.MsgLoggedIn, me.Username))
			return nil
		},
	}
}

// awaitCallback serves the OAuth redirect on ln until a request with the
// expected state arrives, and returns its code. ln is closed on return.
func awaitCallback(ctx context.Context, ln net.Listener, path, state string) (string, error) {
	if path == "" {
		path = "/"
	}

	type callback struct {
		code string
		err  error
	}
	done := make(chan callback, 1)

	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") != state {
			http.Error(w, "unexpected state", http.StatusBadRequest)
			return
		}

		var cb callback
		switch {
		case q.Get("error") != "":
			cb.err = fmt.Errorf("authorization denied: %s", q.Get("error"))
			http.Error(w, "authorization denied", http.StatusForbidden)
		case q.Get("code") == "":
			cb.err = errors.New("callback carried no code")
			http.Error(w, "missing code", http.StatusBadRequest)
		default:
			cb.code = q.Get("code")
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(callbackPage))
		}

		select {
		case done <- cb:
		default:
		}
	})

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.Serve(ln) }()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	select {
	case cb := <-done:
		return cb.code, cb.err
	case <-ctx.Done():
		return "", fmt.Errorf("waiting for oauth callback: %w", ctx.Err())
	}
}

func newLogoutCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored sign-in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := s.open(cmd)
			if err != nil {
				return err
			}

			if a.Auth != nil {
				err = a.Auth.Logout(cmd.Context())
			} else {
				err = auth.NewTokenStore(a.Redis).Delete(cmd.Context())
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), s.messages().Sprintf(message.MsgLoggedOut))
			return nil
		},
	}
}
