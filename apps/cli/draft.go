package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/course"
)

func (cli *commandLine) draft(ctx context.Context, sub string, args []string) error {
	editCmd := flag.NewFlagSet("draft edit", flag.ExitOnError)
	var op course.Op
	editCmd.StringVar(&op.Name, "op", "", "The edit: setField, addChapter, removeChapter, setChapterField, addLesson, removeLesson, "+
		"setLessonField, reorderChapters, addQuestion, removeQuestion, setQuestion, setExplanation, addOption, removeOption, "+
		"setOption, setCorrectAnswer, toggleChapter, toggleQuestion.")
	editCmd.StringVar(&op.Field, "field", "", "The field to set (e.g. title, details.type).")
	editCmd.StringVar(&op.Value, "value", "", "The new value.")
	editCmd.IntVar(&op.Chapter, "chapter", 0, "The chapter index.")
	editCmd.IntVar(&op.Lesson, "lesson", 0, "The lesson index.")
	editCmd.IntVar(&op.Question, "question", 0, "The quiz question index.")
	editCmd.IntVar(&op.Option, "option", 0, "The option index.")
	editCmd.IntVar(&op.From, "from", 0, "The chapter to move.")
	editCmd.IntVar(&op.To, "to", 0, "Where to move the chapter.")

	imageCmd := flag.NewFlagSet("draft image", flag.ExitOnError)
	imagePath := imageCmd.String("file", "", "The image to upload (.jpg, .jpeg, .png, .gif or .webp).")

	form, err := cli.drafts.Load(ctx)
	if err != nil {
		return err
	}

	switch sub {
	case "show":
		return cli.printDraft(form.Draft)
	case "edit":
		if err := editCmd.Parse(args); err != nil {
			return err
		}
		if op.Name == "" {
			editCmd.Usage()
			return errHelp
		}
		if _, err := form.Apply(op); err != nil {
			return err
		}
		if err := cli.drafts.Save(ctx, form); err != nil {
			return err
		}
		fmt.Fprintln(cli.out, "Draft updated")
		return nil
	case "image":
		if err := imageCmd.Parse(args); err != nil {
			return err
		}
		if *imagePath == "" {
			imageCmd.Usage()
			return errHelp
		}
		return cli.uploadImage(ctx, form, *imagePath)
	case "validate":
		if err := cli.courseSvc.Validate(form); err != nil {
			cli.printFieldErrors(err)
			return err
		}
		fmt.Fprintln(cli.out, "Draft is valid")
		return nil
	case "submit":
		sess, err := cli.auth.Load(ctx)
		if err != nil {
			return err
		}
		if err := cli.courseSvc.Submit(ctx, sess.Token, sess.User, form); err != nil {
			cli.printFieldErrors(err)
			return err
		}
		if err := cli.drafts.Clear(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cli.out, "Course created successfully.")
		return nil
	case "reset":
		if err := cli.drafts.Clear(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cli.out, "Draft cleared")
		return nil
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) uploadImage(ctx context.Context, form *course.Form, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "opening image")
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return errors.Wrap(err, "reading image")
	}

	d, err := cli.courseSvc.UploadImage(ctx, form, filepath.Base(path), f, info.Size())
	if err != nil {
		return err
	}
	if err := cli.drafts.Save(ctx, form); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "Image uploaded: %s\n", d.ImageURL)
	return nil
}

func (cli *commandLine) printDraft(d course.Draft) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding draft")
	}
	fmt.Fprintln(cli.out, string(data))
	return nil
}

// printFieldErrors lists every problem of an invalid draft.
func (cli *commandLine) printFieldErrors(err error) {
	vErr, ok := errors.Cause(err).(*core.ValidationError)
	if !ok {
		return
	}
	for _, fe := range vErr.Fields {
		fmt.Fprintf(cli.out, "  %s: %s\n", fe.Field, fe.Error)
	}
}
