package yangbind

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNativeRecordsAreLogged(t *testing.T) {
	var buf bytes.Buffer
	ctx, err := Open(Options{
		DisableSearchDirCwd: true,
		Logger:              zerolog.New(&buf),
	})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer ctx.Close()

	if _, err := ctx.LoadModule("does-not-exist", ""); err == nil {
		t.Fatal("LoadModule of a missing module succeeded")
	}

	out := buf.String()
	if !strings.Contains(out, `"level":"error"`) {
		t.Errorf("no error record logged:\n%s", out)
	}
	if !strings.Contains(out, `"ctx":"`+ctx.ID().String()+`"`) {
		t.Errorf("records do not carry the context id:\n%s", out)
	}
	if !strings.Contains(out, `"code":"not found"`) {
		t.Errorf("records do not carry the status:\n%s", out)
	}
}

func TestKeepWarnings(t *testing.T) {
	ctx, err := Open(Options{
		DisableSearchDirCwd: true,
		LogLevel:            LevelVerbose,
		KeepWarnings:        true,
	})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer ctx.Close()

	if _, err := ctx.ParseModule([]byte(testModule), SchemaYANG); err != nil {
		t.Fatalf("ParseModule failed: %v", err)
	}
	kept := ctx.Warnings()
	found := false
	for _, w := range kept {
		if w.Level == LevelVerbose && strings.Contains(w.Message, "successfully compiled") {
			found = true
		}
	}
	if !found {
		t.Errorf("verbose compile record not kept: %+v", kept)
	}
	if again := ctx.Warnings(); len(again) != 0 {
		t.Errorf("Warnings() did not clear the kept records: %+v", again)
	}
}

func TestWarningsDroppedByDefault(t *testing.T) {
	ctx, err := Open(Options{DisableSearchDirCwd: true, LogLevel: LevelVerbose})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer ctx.Close()

	if _, err := ctx.ParseModule([]byte(testModule), SchemaYANG); err != nil {
		t.Fatalf("ParseModule failed: %v", err)
	}
	if kept := ctx.Warnings(); len(kept) != 0 {
		t.Errorf("Warnings() = %+v without KeepWarnings", kept)
	}
}

func TestSetLogLevel(t *testing.T) {
	var buf bytes.Buffer
	ctx, err := Open(Options{DisableSearchDirCwd: true, Logger: zerolog.New(&buf)})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer ctx.Close()

	prev, err := ctx.SetLogLevel(LevelVerbose)
	if err != nil {
		t.Fatalf("SetLogLevel failed: %v", err)
	}
	if prev != LevelWarning {
		t.Errorf("previous level = %v, want warning", prev)
	}
	if _, err := ctx.ParseModule([]byte(testModule), SchemaYANG); err != nil {
		t.Fatalf("ParseModule failed: %v", err)
	}
	if !strings.Contains(buf.String(), "successfully compiled") {
		t.Errorf("verbose record not logged:\n%s", buf.String())
	}

	ctx.Close()
	if _, err := ctx.SetLogLevel(LevelDebug); err == nil {
		t.Error("SetLogLevel on a closed context succeeded")
	}
}
