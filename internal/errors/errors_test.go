package errors

import (
	"fmt"
	"testing"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/stretchr/testify/assert"

	"github.com/3leaps/gridjobs/pkg/jobdb"
)

func TestCodeAndExitCode(t *testing.T) {
	storageErr := &jobdb.StorageError{Op: "commit", Path: "/w/jobs/job_1.txt", Err: fmt.Errorf("disk full")}
	parseErr := &jobdb.ParseError{Source: "/w/jobs/job_2.txt", Err: fmt.Errorf("missing '='")}

	tests := []struct {
		name     string
		err      error
		wantCode string
		wantExit int
	}{
		{name: "nil", err: nil, wantCode: "", wantExit: 0},
		{name: "storage", err: storageErr, wantCode: CodeStorage, wantExit: int(foundry.ExitFileWriteError)},
		{name: "wrapped storage", err: fmt.Errorf("commit job 1: %w", storageErr), wantCode: CodeStorage, wantExit: int(foundry.ExitFileWriteError)},
		{name: "parse", err: parseErr, wantCode: CodeParse, wantExit: int(foundry.ExitFileReadError)},
		{name: "invalid argument", err: NewInvalidArgument("bad job number %q", "x"), wantCode: CodeInvalidArgument, wantExit: int(foundry.ExitInvalidArgument)},
		{name: "not found", err: NewNotFound("job %d not found", 3), wantCode: CodeNotFound, wantExit: int(foundry.ExitFileNotFound)},
		{name: "external", err: NewExternalServiceError("crucible unavailable"), wantCode: CodeExternalService, wantExit: int(foundry.ExitExternalServiceUnavailable)},
		{name: "internal", err: WrapInternal(fmt.Errorf("boom"), "unexpected"), wantCode: CodeInternal, wantExit: 1},
		{name: "plain", err: fmt.Errorf("boom"), wantCode: CodeInternal, wantExit: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCode, Code(tt.err))
			assert.Equal(t, tt.wantExit, ExitCode(tt.err))
		})
	}
}

func TestAppErrorMessage(t *testing.T) {
	assert.Equal(t, "unexpected: boom", WrapInternal(fmt.Errorf("boom"), "unexpected").Error())
	assert.Equal(t, "boom", (&AppError{Err: fmt.Errorf("boom")}).Error())
	assert.Equal(t, "bad", NewInvalidArgument("bad").Error())
	assert.Nil(t, WrapInternal(nil, "ignored"))
}

func TestEnvelope(t *testing.T) {
	assert.Nil(t, Envelope(nil))

	env := Envelope(&jobdb.StorageError{Op: "create", Path: "/w/jobs", Err: fmt.Errorf("denied")})
	assert.NotNil(t, env)

	env = Envelope(&jobdb.ParseError{Source: "/w/jobs/job_1.txt", Err: fmt.Errorf("bad")})
	assert.NotNil(t, env)

	env = Envelope(NewInvalidArgument("bad selector"))
	assert.NotNil(t, env)
}
