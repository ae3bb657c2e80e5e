package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/ibca/academic/client"
	"github.com/ibca/academic/core/homework"
)

var errNotStudent = errors.New("not signed in as a student; run: portal login -as student")

const dateLayout = "2006-01-02 15:04"

func (cli *commandLine) assignments(ctx context.Context, courseID int, eligible bool) error {
	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCOURSE\tTITLE\tSTART\tDUE\tSTATUS")

	if eligible {
		as, err := cli.api.EligibleAssignments(ctx, courseID)
		if err != nil {
			return err
		}
		for _, a := range as {
			printAssignment(w, a, homework.StatusActive)
		}
		return w.Flush()
	}

	as, err := cli.api.Assignments(ctx, courseID)
	if err != nil {
		return err
	}
	for _, a := range as {
		printAssignment(w, a.Assignment, a.Status)
	}
	return w.Flush()
}

func printAssignment(w *tabwriter.Writer, a homework.Assignment, status homework.Status) {
	fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%s\n",
		a.ID, a.CourseID, a.Title, a.StartDate.Local().Format(dateLayout), a.DueDate.Local().Format(dateLayout), status)
}

func (cli *commandLine) activeCounts(ctx context.Context, courseIDs []int) error {
	counts, err := cli.api.ActiveCounts(ctx, courseIDs...)
	if err != nil {
		return err
	}
	ids := make([]int, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "COURSE\tACTIVE")
	for _, id := range ids {
		fmt.Fprintf(w, "%d\t%d\n", id, counts[id])
	}
	return w.Flush()
}

// submit checks the file against the server's upload policy before sending it.
func (cli *commandLine) submit(ctx context.Context, courseID, assignmentID int, path, notes string) error {
	std, err := cli.studentIdentity()
	if err != nil {
		return err
	}

	policies, err := cli.api.UploadPolicy(ctx)
	if err != nil {
		return err
	}
	file, f, err := client.FileFromPath(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sub, err := cli.api.Submit(ctx, client.SubmissionForm{
		StudentNumber: std.Number,
		StudentName:   std.Name,
		CourseID:      courseID,
		AssignmentID:  assignmentID,
		Notes:         notes,
		File:          file,
	}, policies.Homework)
	if err != nil {
		return err
	}

	fmt.Fprintf(cli.out, "Homework received at %s\n%s\n", sub.UploadDate.Local().Format(time.RFC1123), sub.FileURL)
	return nil
}

func (cli *commandLine) myHomeworks(ctx context.Context) error {
	std, err := cli.studentIdentity()
	if err != nil {
		return err
	}
	subs, err := cli.api.MyHomeworks(ctx, std.Number)
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		fmt.Fprintln(cli.out, "No homework submitted yet")
		return nil
	}

	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCOURSE\tASSIGNMENT\tUPLOADED\tFILE")
	for _, s := range subs {
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\n", s.ID, s.CourseCode, s.AssignmentID, s.UploadDate.Local().Format(dateLayout), s.FileURL)
	}
	return w.Flush()
}
