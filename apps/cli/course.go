package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/trezcool/elimu/core/catalog"
	"github.com/trezcool/elimu/core/course"
)

func (cli *commandLine) showCourse(ctx context.Context, id, tabName string, chapter, lesson int) error {
	tab, err := catalog.ParseTab(tabName)
	if err != nil {
		return err
	}
	sess, err := cli.optionalSession(ctx)
	if err != nil {
		return err
	}
	detail, err := cli.catalogSvc.Detail(ctx, id, sess.User)
	if err != nil {
		return err
	}
	c := detail.Course

	fmt.Fprintln(cli.out, c.Title)
	rating := 0.0
	if c.Rating.Valid {
		rating = c.Rating.Float64
	}
	fmt.Fprintf(cli.out, "%s %.1f | %s | %s\n", detail.Stars, rating, c.Instructor.Name, c.Price)
	if detail.IsEnrolled {
		fmt.Fprintln(cli.out, "Enrolled")
	}
	if detail.IsFavorite {
		fmt.Fprintln(cli.out, "In your favorites")
	}
	fmt.Fprintln(cli.out)

	switch tab {
	case catalog.TabOverview:
		fmt.Fprintln(cli.out, c.Description)
		fmt.Fprintf(cli.out, "Category: %s\nLevel: %s\nDuration: %s\n", c.Category, c.Level, c.Duration)
	case catalog.TabInstructor:
		fmt.Fprintln(cli.out, c.Instructor.Name)
		if c.Instructor.Bio.Valid {
			fmt.Fprintln(cli.out, c.Instructor.Bio.String)
		}
		fmt.Fprintln(cli.out, c.Instructor.AvatarURL())
	case catalog.TabReviews:
		if len(c.Reviews) == 0 {
			fmt.Fprintln(cli.out, "No reviews yet")
		}
		for _, r := range c.Reviews {
			fmt.Fprintf(cli.out, "%s %s: %s\n", catalog.NewStars(r.Rating), r.UserName, r.Comment)
		}
	default:
		if err := detail.CheckAccess(); err != nil {
			fmt.Fprintln(cli.out, err.Error())
			cli.printOutline(c.Details.Chapters)
			return nil
		}
		return cli.printLesson(c, chapter, lesson)
	}
	return nil
}

func (cli *commandLine) printOutline(chapters []course.Chapter) {
	for i, ch := range chapters {
		fmt.Fprintf(cli.out, "%d. %s\n", i+1, ch.Title)
		for j, l := range ch.Lessons {
			fmt.Fprintf(cli.out, "   %d.%d %s\n", i+1, j+1, l.Title)
		}
	}
}

func (cli *commandLine) printLesson(c course.Course, chapter, lesson int) error {
	chapters := c.Details.Chapters
	if chapter < 0 || chapter >= len(chapters) || lesson < 0 || lesson >= len(chapters[chapter].Lessons) {
		return course.ErrIndexOutOfRange
	}
	l := chapters[chapter].Lessons[lesson]

	fmt.Fprintf(cli.out, "%s > %s\n", chapters[chapter].Title, l.Title)
	if l.VideoURL != "" {
		embed, _ := catalog.EmbedURL(l.VideoURL)
		fmt.Fprintf(cli.out, "Video: %s\n", embed)
	}
	for _, b := range catalog.LessonBlocks(l.Content) {
		if b.Kind == catalog.BlockText {
			fmt.Fprintln(cli.out, b.Text)
			continue
		}
		fmt.Fprintf(cli.out, "[%s] %s\n", strings.ToUpper(string(b.Kind)), b.Text)
	}
	return nil
}

func (cli *commandLine) toggleFavorite(ctx context.Context, id string) error {
	sess, err := cli.optionalSession(ctx)
	if err != nil {
		return err
	}
	fav, err := cli.catalogSvc.ToggleFavorite(ctx, sess.Token, id)
	if err != nil {
		return err
	}
	if fav {
		fmt.Fprintln(cli.out, "Added to favorites")
	} else {
		fmt.Fprintln(cli.out, "Removed from favorites")
	}
	return nil
}
