package logsvc

import (
	"bytes"
	"errors"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/BISHOP-X/BABCOCK-VPL/core"
	"github.com/BISHOP-X/BABCOCK-VPL/core/user"
)

func TestRollbarLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewRollbarLogger(log.New(&buf, "", 0), &core.Config{Env: "TEST"})
	usr := user.User{ID: "u1", Email: "chioma@babcock.test", FullName: "Chioma Obi"}

	logger.Error("grading failed", errors.New("boom"), map[string]interface{}{"submission_id": "s1"}, usr)

	out := buf.String()
	assert.Contains(t, out, "ERROR: grading failed")
	assert.Contains(t, out, "boom")
	assert.Contains(t, out, "submission_id:s1")
	assert.Contains(t, out, "user: u1 <chioma@babcock.test>")
}

func TestRollbarLogger_prepare(t *testing.T) {
	logger := &RollbarLogger{std: log.New(&bytes.Buffer{}, "", 0)}
	err := errors.New("boom")

	args := logger.prepare("msg", []interface{}{err, user.User{ID: "u1"}, user.User{ID: "u2"}})
	assert.Equal(t, []interface{}{"msg", err}, args)
}
