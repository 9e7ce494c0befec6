package drapto

import "testing"

func TestNewDefaultsToolsToPath(t *testing.T) {
	e := New()
	if e.tools.FFmpegPath != "ffmpeg" {
		t.Errorf("FFmpegPath = %q, want %q", e.tools.FFmpegPath, "ffmpeg")
	}
	if e.tools.DoviToolPath != "dovi_tool" {
		t.Errorf("DoviToolPath = %q, want %q", e.tools.DoviToolPath, "dovi_tool")
	}
}

func TestWithToolsDirJoinsEveryBinary(t *testing.T) {
	e := New(WithToolsDir("/opt/drapto-tools"))
	want := Tools{
		FFmpegPath:    "/opt/drapto-tools/ffmpeg",
		HandBrakePath: "/opt/drapto-tools/HandBrakeCLI",
		ScorerPath:    "/opt/drapto-tools/scorer",
		DoviToolPath:  "/opt/drapto-tools/dovi_tool",
		HDR10PlusPath: "/opt/drapto-tools/hdr10plus_tool",
	}
	if e.tools != want {
		t.Errorf("tools = %+v, want %+v", e.tools, want)
	}
}

func TestWithToolsOverridesIndividualPaths(t *testing.T) {
	custom := Tools{FFmpegPath: "/usr/local/bin/ffmpeg"}
	e := New(WithTools(custom))
	if e.tools != custom {
		t.Errorf("tools = %+v, want %+v", e.tools, custom)
	}
}

func TestWithWorkersOverridesRunConfig(t *testing.T) {
	e := New(WithWorkers(4))
	if e.runCfg.Workers != 4 {
		t.Errorf("Workers = %d, want 4", e.runCfg.Workers)
	}
}
