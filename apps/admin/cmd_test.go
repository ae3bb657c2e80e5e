package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"strconv"
	"testing"

	"github.com/ibca/academic/core"
	"github.com/ibca/academic/core/course"
	"github.com/ibca/academic/core/student"
	"github.com/ibca/academic/core/user"
	emailsvc "github.com/ibca/academic/services/email"
	inmemdb "github.com/ibca/academic/storage/database/inmem"
)

func setup(t *testing.T) *commandLine {
	conf := core.NewConfig()

	// set up DB & repos
	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	courseSvc := course.NewService(inmemdb.NewCourseRepository(db))

	// start CLI
	return &commandLine{
		out:        io.Discard,
		usrRepo:    usrRepo,
		usrSvc:     user.NewService(usrRepo, emailsvc.NewConsoleServiceMock(conf), conf),
		studentSvc: student.NewService(db.Transactor(), inmemdb.NewStudentRepository(db), courseSvc, conf),
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func runCLITests(t *testing.T, cli *commandLine, tests []cliTest, check func(t *testing.T, tt cliTest)) {
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			switch {
			case err == nil:
				if tt.wantErr != nil || tt.wantErrStr != "" {
					t.Errorf("cli.run() error = nil, wantErr %v%s", tt.wantErr, tt.wantErrStr)
				} else if check != nil {
					check(t, tt)
				}
			case tt.wantErr != nil:
				if err != tt.wantErr {
					t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
				}
			case tt.wantErrStr != "":
				if err.Error() != tt.wantErrStr {
					t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
				}
			default:
				t.Errorf("cli.run() unexpected error = %v", err)
			}
		})
	}
}

func mockPassword(pwd string) func() {
	orig := readPasswordFunc
	readPasswordFunc = func(fd int) ([]byte, error) { return []byte(pwd), nil }
	return func() { readPasswordFunc = orig }
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	defer func(f func(*sql.DB, string, ...string) error) { migrateFunc = f }(migrateFunc)
	migrateFunc = func(db *sql.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "3"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "gallery_tags", "sql"}},
	}
	runCLITests(t, cli, tests, nil)
}

func Test_commandLine_addUser(t *testing.T) {
	cli := setup(t)
	defer mockPassword("Str0ng-Passw0rd")()

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "no email", args: []string{"adduser", "-username", "hoca"}, wantErr: errHelp},
		{name: "create", args: []string{"adduser", "-username", "Hoca", "-email", "hoca@test.edu", "-name", "Dr. Hoca"}},
		{name: "email taken", args: []string{"adduser", "-username", "other", "-email", "hoca@test.edu"}, wantErr: user.ErrEmailExists},
		{name: "update existing", args: []string{"adduser", "-username", "hoca", "-email", "hoca@test.edu"}},
	}
	runCLITests(t, cli, tests, func(t *testing.T, tt cliTest) {
		usr, err := cli.usrSvc.Authenticate(context.Background(), "hoca", "Str0ng-Passw0rd")
		if err != nil {
			t.Fatalf("Authenticate() error = %v", err)
		}
		if !usr.IsAdmin || !usr.IsActive || usr.Name != "Dr. Hoca" {
			t.Errorf("unexpected admin %+v", usr)
		}
	})
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)

	usr := user.User{Name: "User", Username: "awe", Email: "awe@test.cd", IsActive: true, IsAdmin: true}
	if err := usr.SetPassword("mdr"); err != nil {
		t.Fatal(err)
	}
	usr, err := cli.usrRepo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed, %v", err)
	}

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, extra: extra{pwd: "lol"}, wantErr: user.ErrNotFound},
		{name: "reset with username", args: []string{"resetpassword", "-username", usr.Username}, extra: extra{pwd: "lol"}},
		{name: "reset with email", args: []string{"resetpassword", "-username", usr.Email}, extra: extra{pwd: "lmao"}},
	}
	defer func(f func(int) ([]byte, error)) { readPasswordFunc = f }(readPasswordFunc)
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if err == nil {
				refreshedUsr, err := cli.usrRepo.GetUserByID(context.Background(), usr.ID)
				if err != nil {
					t.Fatalf("GetUserByID() failed, %v", err)
				}
				if bytes.Equal(refreshedUsr.PasswordHash, usr.PasswordHash) {
					t.Error("failed to update new password")
				}
				if err = refreshedUsr.CheckPassword(tt.extra.(extra).pwd); err != nil {
					t.Errorf("CheckPassword() error = %v", err)
				}
			} else if err != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func Test_commandLine_students(t *testing.T) {
	cli := setup(t)
	var out bytes.Buffer
	cli.out = &out

	tests := []cliTest{
		{name: "provision: no args", args: []string{"provision-students"}, wantErr: errHelp},
		{name: "provision: no prefix", args: []string{"provision-students", "-count", "3"}, wantErr: errHelp},
		{name: "provision", args: []string{"provision-students", "-count", "3", "-prefix", "pw", "-semester", "Bahar", "-year", "2024-2025"}},
		{name: "delete: no year", args: []string{"delete-students", "-semester", "Bahar"}, wantErr: errHelp},
		{name: "delete", args: []string{"delete-students", "-semester", "Bahar", "-year", "2024-2025"}},
	}
	runCLITests(t, cli, tests, nil)

	n, err := cli.studentSvc.Count(context.Background(), false)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 0 {
		t.Errorf("students left = %d; want 0", n)
	}
	if !bytes.Contains(out.Bytes(), []byte("created 3 students, 0 skipped")) {
		t.Errorf("unexpected output %s", out.String())
	}
	if !bytes.Contains(out.Bytes(), []byte("deleted 3 students of Bahar 2024-2025")) {
		t.Errorf("unexpected output %s", out.String())
	}
}
