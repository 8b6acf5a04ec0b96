package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"syscall"

	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/auth"
	"github.com/trezcool/elimu/core/catalog"
	"github.com/trezcool/elimu/core/course"
	"github.com/trezcool/elimu/core/purchase"
	"github.com/trezcool/elimu/core/quiz"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	conf       *core.Config
	logger     core.Logger
	db         *sqlx.DB // nil unless the store is a SQL database
	auth       *auth.Store
	drafts     *course.DraftStore
	catalogSvc *catalog.Service
	quizSvc    *quiz.Service
	courseSvc  *course.Service
	flow       *purchase.Flow

	in  io.Reader
	out io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  login [-token TOKEN] - store the session token (prompted when omitted)")
	fmt.Fprintln(cli.out, "  logout - forget the session")
	fmt.Fprintln(cli.out, "  whoami - print the logged in user")
	fmt.Fprintln(cli.out, "  course -id ID [-tab content|overview|instructor|reviews] [-chapter N] [-lesson N] - show a course")
	fmt.Fprintln(cli.out, "  favorite -id ID - add or remove a course from the favorites")
	fmt.Fprintln(cli.out, "  quiz -id ID - take the quiz of a course")
	fmt.Fprintln(cli.out, "  buy -id ID - buy a course")
	fmt.Fprintln(cli.out, "  draft show|validate|submit|reset - manage the course draft")
	fmt.Fprintln(cli.out, "  draft edit -op OP [-field F] [-value V] [-chapter N] [-lesson N] [-question N] [-option N] [-from N] [-to N]")
	fmt.Fprintln(cli.out, "  draft image -file PATH - upload the course image")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run the store migrations (sqlite3 and postgres stores)")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	loginCmd := flag.NewFlagSet("login", flag.ExitOnError)
	loginToken := loginCmd.String("token", "", "The session token. It will be prompted when omitted.")

	courseCmd := flag.NewFlagSet("course", flag.ExitOnError)
	courseID := courseCmd.String("id", "", "The course ID.")
	courseTab := courseCmd.String("tab", "", "The section to show: content (default), overview, instructor or reviews.")
	courseChapter := courseCmd.Int("chapter", 0, "The chapter of the lesson to show (content tab).")
	courseLesson := courseCmd.Int("lesson", 0, "The lesson to show (content tab).")

	favoriteCmd := flag.NewFlagSet("favorite", flag.ExitOnError)
	favoriteID := favoriteCmd.String("id", "", "The course ID.")

	quizCmd := flag.NewFlagSet("quiz", flag.ExitOnError)
	quizID := quizCmd.String("id", "", "The course ID.")

	buyCmd := flag.NewFlagSet("buy", flag.ExitOnError)
	buyID := buyCmd.String("id", "", "The course ID.")

	switch args[1] {
	case "login":
		if err := loginCmd.Parse(args[2:]); err != nil {
			return err
		}
		token := *loginToken
		if token == "" {
			fmt.Fprint(cli.out, "Enter token:")
			raw, err := readPasswordFunc(int(syscall.Stdin))
			fmt.Fprintln(cli.out)
			if err != nil {
				return err
			}
			token = core.CleanString(string(raw))
		}
		if token == "" {
			loginCmd.Usage()
			return errHelp
		}
		return cli.login(ctx, token)
	case "logout":
		return cli.logout(ctx)
	case "whoami":
		return cli.whoami(ctx)
	case "course":
		if err := courseCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *courseID == "" {
			courseCmd.Usage()
			return errHelp
		}
		return cli.showCourse(ctx, *courseID, *courseTab, *courseChapter, *courseLesson)
	case "favorite":
		if err := favoriteCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *favoriteID == "" {
			favoriteCmd.Usage()
			return errHelp
		}
		return cli.toggleFavorite(ctx, *favoriteID)
	case "quiz":
		if err := quizCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *quizID == "" {
			quizCmd.Usage()
			return errHelp
		}
		return cli.takeQuiz(ctx, *quizID)
	case "buy":
		if err := buyCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *buyID == "" {
			buyCmd.Usage()
			return errHelp
		}
		return cli.buy(ctx, *buyID)
	case "draft":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.draft(ctx, args[2], args[3:])
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(ctx, args[2:])
	default:
		cli.printUsage()
		return errHelp
	}
}

// readLines feeds the lines typed by the user until the input ends or ctx is done.
func (cli *commandLine) readLines(ctx context.Context) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(cli.in)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimSpace(scanner.Text()):
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}
