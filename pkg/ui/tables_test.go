package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ExclusiveAccount/secops-toolkit/pkg/credentials"
	"github.com/ExclusiveAccount/secops-toolkit/pkg/report"
)

func TestTableContainsCells(t *testing.T) {
	out := Table([]string{"IP Address", "Status"}, [][]string{{"10.0.0.1", "Success"}, {"10.0.0.2", "Failed"}})
	for _, want := range []string{"IP Address", "Status", "10.0.0.1", "Success", "10.0.0.2", "Failed"} {
		assert.Contains(t, out, want)
	}
}

func TestMark(t *testing.T) {
	assert.Equal(t, "✓", Mark(credentials.StatusSuccess))
	assert.Equal(t, "✗", Mark(credentials.StatusFailed))
	assert.Equal(t, "!", Mark(credentials.StatusSkipped))
}

func TestCredentialReport(t *testing.T) {
	outcomes := []credentials.Outcome{
		{Section: credentials.Linux, IP: "10.0.0.1", Attempts: []credentials.Attempt{
			{Protocol: "SSH", Status: credentials.StatusSuccess, Details: "Success"},
		}},
		{Section: credentials.Others, IP: "10.0.2.1", Attempts: []credentials.Attempt{
			{Protocol: "SSH", Status: credentials.StatusFailed, Details: "Connection refused"},
			{Protocol: "SMB", Status: credentials.StatusFailed, Details: "Connection refused"},
		}},
	}
	out := CredentialReport(outcomes)
	assert.Contains(t, out, "Linux Systems:")
	assert.Contains(t, out, "Others Systems:")
	assert.NotContains(t, out, "Windows Systems:")
	assert.Contains(t, out, "Both SSH and SMB failed")
	assert.Contains(t, out, "TOTAL")
	assert.Contains(t, out, "Overall Success Rate: 50.0%")
}

func TestRunReport(t *testing.T) {
	out := RunReport(report.RunSummary{RunID: "abc", Counts: map[string]int{"Verified": 2, "False Positive": 1}})
	assert.Contains(t, out, "run abc")
	assert.Contains(t, out, "Verified")
	assert.Contains(t, out, "False Positive")
	assert.Contains(t, out, "3")
}

func TestStatusStyle(t *testing.T) {
	_, ok := StatusStyle("Verified")
	assert.True(t, ok)
	_, ok = StatusStyle("10.0.0.1")
	assert.False(t, ok)
}
