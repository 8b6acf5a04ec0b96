package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/auth"
)

func (cli *commandLine) login(ctx context.Context, token string) error {
	sess, err := cli.auth.Login(ctx, token)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "Logged in as %s\n", displayName(sess.User))
	return nil
}

func (cli *commandLine) logout(ctx context.Context) error {
	if err := cli.auth.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(cli.out, "Logged out")
	return nil
}

func (cli *commandLine) whoami(ctx context.Context) error {
	sess, err := cli.auth.Load(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%s (%s)\n", displayName(sess.User), sess.User.ID)
	return nil
}

// optionalSession returns the zero Session to anonymous users.
func (cli *commandLine) optionalSession(ctx context.Context) (auth.Session, error) {
	sess, err := cli.auth.Load(ctx)
	if errors.Cause(err) == core.ErrNotAuthenticated {
		return auth.Session{}, nil
	}
	return sess, err
}

func displayName(usr core.Profile) string {
	switch {
	case usr.Name != "":
		return usr.Name
	case usr.Email != "":
		return usr.Email
	}
	return usr.ID
}
