package main

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core/quiz"
)

func (cli *commandLine) takeQuiz(ctx context.Context, courseID string) error {
	sess, err := cli.auth.Load(ctx)
	if err != nil {
		return err
	}
	detail, err := cli.catalogSvc.Detail(ctx, courseID, sess.User)
	if err != nil {
		return err
	}
	if err = detail.CheckAccess(); err != nil {
		return err
	}
	s, err := cli.quizSvc.NewSession(ctx, courseID, detail.Course.Details.Quiz)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	lines := cli.readLines(ctx)

	snap := s.Snapshot()
	fmt.Fprintf(cli.out, "%s: %d questions, %s to answer them all.\n",
		detail.Course.Title, snap.TotalQuestions, clock(snap.RemainingSeconds))

	for {
		fmt.Fprint(cli.out, "Press Enter to start (q to quit): ")
		if line, ok := <-lines; !ok || line == "q" {
			return nil
		}

		done, err := cli.attempt(s, lines)
		if err != nil || !done {
			return err
		}

		res, err := s.Result()
		if err != nil {
			return err
		}
		cli.printResult(s, res)
		cli.quizSvc.MailResult(sess.User, detail.Course.Title, res)

		fmt.Fprint(cli.out, "Type r to retake the quiz, anything else to quit: ")
		if line, ok := <-lines; !ok || line != "r" {
			return nil
		}
		if err = s.Reset(); err != nil {
			return err
		}
	}
}

// attempt runs one attempt until it is submitted (done), or abandoned by the user.
func (cli *commandLine) attempt(s *quiz.Session, lines <-chan string) (done bool, err error) {
	timeUp := make(chan struct{})
	var once sync.Once
	unsubscribe := s.Subscribe(func(snap quiz.Snapshot) {
		if snap.Phase == quiz.PhaseSubmitted && snap.AutoSubmitted {
			once.Do(func() { close(timeUp) })
		}
	})
	defer unsubscribe()

	if err = s.Start(); err != nil {
		return false, err
	}

	for {
		cli.printQuestion(s)
		select {
		case <-timeUp:
			fmt.Fprintln(cli.out, "\nTime is up, your answers were submitted.")
			return true, nil
		case line, ok := <-lines:
			if !ok || line == "q" {
				return false, nil
			}
			switch line {
			case "n":
				err = s.Next()
			case "p":
				err = s.Prev()
			case "s":
				if err = s.Submit(); err == nil {
					return true, nil
				}
			default:
				opt, convErr := strconv.Atoi(line)
				if convErr != nil {
					fmt.Fprintln(cli.out, "Type an option number, n, p, s or q.")
					continue
				}
				err = s.SelectOption(s.Snapshot().CurrentIndex, opt-1)
			}
			switch errors.Cause(err) {
			case nil:
			case quiz.ErrNotInProgress:
				// submitted by the timer meanwhile
				fmt.Fprintln(cli.out, "\nTime is up, your answers were submitted.")
				return true, nil
			case quiz.ErrIncomplete, quiz.ErrOptionOutOfRange:
				fmt.Fprintln(cli.out, err.Error())
			default:
				return false, err
			}
		}
	}
}

func (cli *commandLine) printQuestion(s *quiz.Session) {
	snap := s.Snapshot()
	q, ok := s.Current()
	if !ok {
		return
	}
	fmt.Fprintf(cli.out, "\nQuestion %d/%d (%d%% answered, %s left)\n%s\n",
		snap.CurrentIndex+1, snap.TotalQuestions, snap.ProgressPercentage, clock(snap.RemainingSeconds), q.Question)
	selected, answered := snap.Answers[snap.CurrentIndex]
	for i, opt := range q.Options {
		mark := " "
		if answered && selected == i {
			mark = "x"
		}
		fmt.Fprintf(cli.out, "  [%s] %d. %s\n", mark, i+1, opt)
	}
	fmt.Fprint(cli.out, "Option number, n(ext), p(revious), s(ubmit) or q(uit): ")
}

func (cli *commandLine) printResult(s *quiz.Session, res quiz.Result) {
	fmt.Fprintf(cli.out, "\nScore: %d/%d (%d%%)\n%s\n", res.Score, res.Total, res.Percentage, res.Verdict)

	items, err := s.Review()
	if err != nil {
		return
	}
	for _, item := range items {
		mark := "✗"
		if item.IsCorrect {
			mark = "✓"
		}
		fmt.Fprintf(cli.out, "\n%s %d. %s\n", mark, item.Index+1, item.Question)
		if item.Selected != nil && !item.IsCorrect {
			fmt.Fprintf(cli.out, "  Your answer: %s\n", item.Options[*item.Selected])
		}
		fmt.Fprintf(cli.out, "  Correct answer: %s\n", item.CorrectOption)
		if item.Explanation != "" {
			fmt.Fprintf(cli.out, "  %s\n", item.Explanation)
		}
	}
}

// clock formats seconds as mm:ss.
func clock(secs int) string {
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}
