package cron

import (
	"log/slog"
	"testing"
)

func FuzzRegisterJobSchedule(f *testing.F) {
	f.Add("*/5 * * * *")
	f.Add("0 * * * *")
	f.Add("0 0 1 1 *")
	f.Add("* * * * *")
	f.Add("invalid")
	f.Add("")
	f.Add("60 * * * *")
	f.Add("0 25 * * *")

	f.Fuzz(func(_ *testing.T, expr string) {
		s := NewScheduler(slog.Default())
		// Malformed expressions must be rejected, never panic.
		_ = s.RegisterJob(&stubJob{name: "fuzzed", schedule: expr})
	})
}
