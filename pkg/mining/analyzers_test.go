package mining

import (
	"context"
	"math"
	"testing"

	"github.com/rs/zerolog"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestComputeBottlenecks_SingleCase(t *testing.T) {
	log := logOf(ev("C1", "A", 0), ev("C1", "B", 10), ev("C1", "C", 40))

	got := ComputeBottlenecks(log)

	if _, ok := got["A"]; ok {
		t.Error("First activity must not be reported")
	}
	if !approx(got["B"], 10) {
		t.Errorf("B = %v, want 10", got["B"])
	}
	if !approx(got["C"], 30) {
		t.Errorf("C = %v, want 30", got["C"])
	}
}

func TestComputeBottlenecks_AveragesAcrossCases(t *testing.T) {
	log := logOf(
		ev("C1", "Start", 0), ev("C1", "Review", 10),
		ev("C2", "Review", 20), ev("C2", "Start", 0), // out of order on input
		ev("C3", "Start", 100), // single-event case
	)

	got := ComputeBottlenecks(log)

	if len(got) != 1 {
		t.Fatalf("Expected only Review, got %v", got)
	}
	if !approx(got["Review"], 15) {
		t.Errorf("Review = %v, want 15", got["Review"])
	}
}

func TestComputeBottlenecks_SecondsPrecision(t *testing.T) {
	log := logOf(ev("C1", "A", 0), ev("C1", "B", 0))
	log.Events[1].Timestamp = log.Events[1].Timestamp.Add(90e9) // 90s

	if got := ComputeBottlenecks(log)["B"]; !approx(got, 1.5) {
		t.Errorf("B = %v, want 1.5", got)
	}
}

func TestRankBottlenecks_Order(t *testing.T) {
	log := logOf(
		ev("C1", "A", 0), ev("C1", "Slow", 60), ev("C1", "Fast", 65),
		ev("C2", "A", 0), ev("C2", "Also", 5),
	)

	ranked := RankBottlenecks(log)
	if len(ranked) != 3 {
		t.Fatalf("Expected 3 metrics, got %d", len(ranked))
	}
	if ranked[0].Activity != "Slow" || ranked[0].Samples != 1 {
		t.Errorf("Expected Slow first, got %+v", ranked[0])
	}
	// Also and Fast tie at 5 minutes; name order decides
	if ranked[1].Activity != "Also" || ranked[2].Activity != "Fast" {
		t.Errorf("Unexpected tie order: %+v", ranked)
	}
}

func TestDetectLoops(t *testing.T) {
	var events = caseWith(nil, "looping", "Start", "Review", "Review", "Approve", "End")
	events = caseWith(events, "clean", "Start", "Review", "Approve", "End")
	events = caseWith(events, "double", "B", "A", "B", "A", "A")

	loops := DetectLoops(logOf(events...))

	if len(loops) != 2 {
		t.Fatalf("Expected 2 looping cases, got %v", loops)
	}
	if _, ok := loops["clean"]; ok {
		t.Error("Case with distinct activities must not be reported")
	}
	if got := loops["looping"]; len(got) != 1 || got[0] != "Review" {
		t.Errorf("looping = %v, want [Review]", got)
	}
	if got := loops["double"]; len(got) != 2 || got[0] != "A" || got[1] != "B" {
		t.Errorf("double = %v, want [A B]", got)
	}

	report := LoopReport(loops)
	if report[0].CaseID != "double" || report[1].CaseID != "looping" {
		t.Errorf("Report not ordered by case: %+v", report)
	}
}

func TestDetectLoops_None(t *testing.T) {
	log := logOf(caseWith(nil, "c", "Start", "End")...)
	if loops := DetectLoops(log); len(loops) != 0 {
		t.Errorf("Expected no loops, got %v", loops)
	}
}

func TestMineVariants_Ranking(t *testing.T) {
	variants := MineVariants(variantLog(), 0)

	if len(variants) != 3 {
		t.Fatalf("Expected 3 variants, got %d", len(variants))
	}

	wantCounts := []int{3, 2, 1}
	for i, v := range variants {
		if v.Count != wantCounts[i] {
			t.Errorf("Variant %d count = %d, want %d", i, v.Count, wantCounts[i])
		}
		if v.Rank != i+1 {
			t.Errorf("Variant %d rank = %d", i, v.Rank)
		}
	}
	if !variants[1].Activities.Equal(Sequence{"Start", "Approve", "End"}) {
		t.Errorf("Unexpected second variant: %v", variants[1].Activities)
	}
	if !approx(variants[0].Percent, 50) {
		t.Errorf("Top variant percent = %v, want 50", variants[0].Percent)
	}
	if len(variants[1].Cases) != 2 {
		t.Errorf("Expected 2 cases on second variant, got %v", variants[1].Cases)
	}
}

func TestMineVariants_TiesKeepFirstSeen(t *testing.T) {
	var events = caseWith(nil, "z", "X", "Y")
	events = caseWith(events, "a", "Y", "X")
	events = caseWith(events, "m", "X")

	variants := MineVariants(logOf(events...), 10)

	if len(variants) != 3 {
		t.Fatalf("Expected 3 variants, got %d", len(variants))
	}
	if variants[0].Cases[0] != "z" || variants[1].Cases[0] != "a" || variants[2].Cases[0] != "m" {
		t.Errorf("Ties must keep first-seen order, got %+v", variants)
	}
}

func TestMineVariants_Truncates(t *testing.T) {
	var events = caseWith(nil, "seed", "S")
	for i := 0; i < 15; i++ {
		seq := make([]string, i+1)
		for j := range seq {
			seq[j] = "step"
		}
		events = caseWith(events, string(rune('a'+i)), seq...)
	}

	if got := len(MineVariants(logOf(events...), 0)); got != DefaultTopVariants {
		t.Errorf("Expected %d variants, got %d", DefaultTopVariants, got)
	}
	if got := len(MineVariants(logOf(events...), 4)); got != 4 {
		t.Errorf("Expected 4 variants, got %d", got)
	}
}

func TestCheckCompliance(t *testing.T) {
	var events = caseWith(nil, "ok", "Start", "Review", "Approve", "End")
	events = caseWith(events, "skip1", "Start", "Approve", "End")
	events = caseWith(events, "skip2", "Start", "Approve", "End")
	events = caseWith(events, "extra", "Start", "Review", "Approve", "End", "End")

	result := CheckCompliance(logOf(events...), DefaultExpected)

	if result.NonCompliantCases != 3 {
		t.Errorf("Expected 3 non-compliant cases, got %d", result.NonCompliantCases)
	}
	for _, issue := range result.Issues {
		if issue.CaseID == "ok" {
			t.Error("Exact reference case must not be flagged")
		}
	}
	if len(result.Deviations) != 2 {
		t.Fatalf("Expected 2 distinct deviations, got %d", len(result.Deviations))
	}
	if len(result.Deviations[0].Cases) != 2 {
		t.Errorf("Expected skip cases grouped, got %+v", result.Deviations[0])
	}
}

func TestCheckCompliance_SharedDeviation(t *testing.T) {
	var events = caseWith(nil, "c1", "Start", "Approve", "End")
	events = caseWith(events, "c2", "Start", "Approve", "End")

	result := CheckCompliance(logOf(events...), DefaultExpected)

	if result.NonCompliantCases != 2 {
		t.Errorf("Expected 2 non-compliant cases, got %d", result.NonCompliantCases)
	}
	if len(result.Deviations) != 1 {
		t.Errorf("Expected 1 distinct sequence, got %d", len(result.Deviations))
	}
}

func TestCheckCompliance_CustomReference(t *testing.T) {
	log := logOf(caseWith(nil, "c1", "Open", "Close")...)

	if r := CheckCompliance(log, Sequence{"Open", "Close"}); r.NonCompliantCases != 0 {
		t.Errorf("Expected compliant, got %+v", r)
	}
	if r := CheckCompliance(log, DefaultExpected); r.NonCompliantCases != 1 {
		t.Errorf("Expected violation against default, got %+v", r)
	}
}

func TestAnalyzers_EmptyLog(t *testing.T) {
	log := logOf()

	if got := ComputeBottlenecks(log); len(got) != 0 {
		t.Errorf("Bottlenecks = %v", got)
	}
	if got := DetectLoops(log); len(got) != 0 {
		t.Errorf("Loops = %v", got)
	}
	if got := MineVariants(log, 10); len(got) != 0 {
		t.Errorf("Variants = %v", got)
	}
	if got := CheckCompliance(log, DefaultExpected); got.NonCompliantCases != 0 || len(got.Issues) != 0 {
		t.Errorf("Compliance = %+v", got)
	}
}

func TestBuildOverview(t *testing.T) {
	log := variantLog()
	log.Columns = append(log.Columns, "resource")

	ov := BuildOverview(log, 0)

	if ov.Rows != 21 {
		t.Errorf("Rows = %d, want 21", ov.Rows)
	}
	if ov.Columns != 4 {
		t.Errorf("Columns = %d, want 4", ov.Columns)
	}
	if ov.Cases != 6 || ov.Activities != 4 {
		t.Errorf("Cases/Activities = %d/%d, want 6/4", ov.Cases, ov.Activities)
	}
	if len(ov.Sample) != DefaultSampleRows {
		t.Errorf("Sample rows = %d", len(ov.Sample))
	}
	if ov.CaseStats.MinEventsPerCase != 3 || ov.CaseStats.MaxEventsPerCase != 4 {
		t.Errorf("Unexpected case stats: %+v", ov.CaseStats)
	}
	if ov.TimeRange.Duration.Minutes() != 30 {
		t.Errorf("Time range = %v, want 30m", ov.TimeRange.Duration)
	}
}

func TestEngine_Analyze(t *testing.T) {
	engine := NewEngine(Options{}, zerolog.Nop())

	report, err := engine.Analyze(context.Background(), variantLog(), WithTopVariants(2))
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if len(report.Variants) != 2 {
		t.Errorf("Expected 2 variants, got %d", len(report.Variants))
	}
	if report.Compliance.NonCompliantCases != 3 {
		t.Errorf("Expected 3 non-compliant cases, got %d", report.Compliance.NonCompliantCases)
	}
	if report.Overview.Cases != 6 {
		t.Errorf("Expected 6 cases, got %d", report.Overview.Cases)
	}
	if len(report.Bottlenecks) != 3 {
		t.Errorf("Expected 3 bottleneck activities, got %d", len(report.Bottlenecks))
	}
	if len(report.Loops) != 0 {
		t.Errorf("Expected no loops, got %v", report.Loops)
	}
}

func TestEngine_AnalyzeWithExpected(t *testing.T) {
	engine := NewEngine(DefaultOptions(), zerolog.Nop())

	report, err := engine.Analyze(context.Background(), variantLog(),
		WithExpected(Sequence{"Start", "Approve", "End"}))
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if report.Compliance.NonCompliantCases != 4 {
		t.Errorf("Expected 4 non-compliant cases, got %d", report.Compliance.NonCompliantCases)
	}
}

func TestEngine_Canceled(t *testing.T) {
	engine := NewEngine(DefaultOptions(), zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := engine.Analyze(ctx, variantLog()); err == nil {
		t.Error("Expected error for canceled context")
	}
}

func TestEngine_EmptyLog(t *testing.T) {
	engine := NewEngine(DefaultOptions(), zerolog.Nop())

	report, err := engine.Analyze(context.Background(), logOf())
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if report.Overview.Rows != 0 || len(report.Variants) != 0 || len(report.Bottlenecks) != 0 {
		t.Errorf("Expected empty report, got %+v", report)
	}
}
