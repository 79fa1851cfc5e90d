package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/John-Robertt/ffbuild/internal/config"
	"github.com/John-Robertt/ffbuild/internal/domain"
)

func TestEmitFailures(t *testing.T) {
	rr := domain.BuildReport{Steps: []domain.StepResult{
		{Step: domain.StepFetchFFmpeg, Status: domain.StatusDone},
		{Step: domain.StepConfigureFFmpeg, Status: domain.StatusFailed, ErrorCode: domain.ErrCodeConfigureFailed, ErrorMsg: "exit 1"},
		{Step: domain.StepMakeFFmpeg, Status: domain.StatusPlanned},
	}}

	var buf bytes.Buffer
	emitFailures(&buf, rr)
	assert.Equal(t, "configure-ffmpeg configure_failed: exit 1\n", buf.String())

	buf.Reset()
	emitFailures(&buf, domain.BuildReport{})
	assert.Empty(t, buf.String())
}

func TestReportForConfigError(t *testing.T) {
	err := &config.Error{Code: config.ErrCodeNotFound, Path: "/x/ffbuild.yaml", Err: errors.New("missing")}

	rr := reportForConfigError("/x", true, err)
	assert.False(t, rr.OK())
	f, ok := rr.FirstFailure()
	assert.True(t, ok)
	assert.Equal(t, domain.StepSetup, f.Step)
	assert.Equal(t, domain.ErrCodeConfigNotFound, f.ErrorCode)
}
