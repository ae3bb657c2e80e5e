package main

import (
	"context"
	"fmt"

	"github.com/ibca/academic/core/student"
)

// provisionStudents bulk creates numbered accounts and prints the credentials preview.
func (cli *commandLine) provisionStudents(count int, prefix, semester, academicYear string) error {
	res, err := cli.studentSvc.BulkCreate(context.Background(), student.BulkCreate{
		Count:          count,
		PasswordPrefix: prefix,
		Semester:       semester,
		AcademicYear:   academicYear,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cli.out, "created %d students, %d skipped\n", res.CreatedCount, res.ErrorCount)
	for _, c := range res.Students {
		fmt.Fprintf(cli.out, "  %s\t%s\t%s\n", c.StudentNumber, c.Password, c.Email)
	}
	if res.CreatedCount > len(res.Students) {
		fmt.Fprintf(cli.out, "  ... passwords follow the pattern %s\n", student.BulkPassword(prefix, count))
	}
	for _, e := range res.Errors {
		fmt.Fprintf(cli.out, "  skipped: %s\n", e)
	}
	return nil
}

func (cli *commandLine) deleteStudents(semester, academicYear string) error {
	res, err := cli.studentSvc.DeleteBySemester(context.Background(), semester, academicYear)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "deleted %d students of %s %s\n", res.DeletedCount, res.Semester, res.AcademicYear)
	return nil
}
