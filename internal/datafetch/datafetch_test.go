package datafetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ubc-cic/expertise-dashboard/internal/pipeline"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var testFunctions = Functions{
	Researchers:  "researcherFetch",
	Elsevier:     "elsevierFetch",
	Orcid:        "orcidFetch",
	Publications: "publicationFetch",
}

type fakeInvoker struct {
	mu       sync.Mutex
	order    []string
	inFlight map[string]int
	peak     map[string]int
	payloads map[string][]string
	fail     map[string]error
	orcidOut string
}

func newFakeInvoker() *fakeInvoker {
	return &fakeInvoker{
		inFlight: map[string]int{},
		peak:     map[string]int{},
		payloads: map[string][]string{},
		fail:     map[string]error{},
		orcidOut: `[{"orcid":"a"},{"orcid":"b"},{"orcid":"c"}]`,
	}
}

func (f *fakeInvoker) Invoke(ctx context.Context, function string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.order = append(f.order, function)
	f.payloads[function] = append(f.payloads[function], string(body))
	f.inFlight[function]++
	if f.inFlight[function] > f.peak[function] {
		f.peak[function] = f.inFlight[function]
	}
	failErr := f.fail[function]
	f.mu.Unlock()

	time.Sleep(time.Millisecond)

	f.mu.Lock()
	f.inFlight[function]--
	f.mu.Unlock()

	if failErr != nil {
		return failErr
	}

	var resp string
	switch function {
	case testFunctions.Orcid:
		resp = f.orcidOut
	case testFunctions.Elsevier:
		resp = `{"elsevier":"done"}`
	default:
		resp = fmt.Sprintf(`{"in":%s}`, body)
	}
	return json.Unmarshal([]byte(resp), out)
}

func (f *fakeInvoker) first(function string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, fn := range f.order {
		if fn == function {
			return i
		}
	}
	return -1
}

func (f *fakeInvoker) last(function string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := -1
	for i, fn := range f.order {
		if fn == function {
			idx = i
		}
	}
	return idx
}

func indices(n int) Input {
	in := Input{}
	for i := 0; i < n; i++ {
		in.Indices = append(in.Indices, json.RawMessage(fmt.Sprintf("%d", i)))
	}
	return in
}

func runner() *pipeline.Runner {
	return pipeline.NewRunner(pipeline.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Functions = testFunctions
	return cfg
}

func TestGraph_Shape(t *testing.T) {
	order, err := NewGraph(testConfig(), newFakeInvoker()).Order()
	require.NoError(t, err)
	assert.Equal(t, []string{TaskFetchResearchers, TaskFetchElsevier, TaskFetchOrcid, TaskFetchPublications}, order)
}

func TestRun_OrderFanOutAndBounds(t *testing.T) {
	inv := newFakeInvoker()
	inv.orcidOut = "[" + repeat(`{"orcid":"x"}`, 20) + "]"

	run, err := runner().RunWith(context.Background(), NewGraph(testConfig(), inv), Seed(indices(100)))
	require.NoError(t, err)

	assert.Len(t, inv.payloads[testFunctions.Researchers], 100)
	assert.Len(t, inv.payloads[testFunctions.Elsevier], 1)
	assert.Len(t, inv.payloads[testFunctions.Orcid], 1)
	assert.Len(t, inv.payloads[testFunctions.Publications], 20)

	assert.LessOrEqual(t, inv.peak[testFunctions.Researchers], 40)
	assert.LessOrEqual(t, inv.peak[testFunctions.Publications], 5)

	assert.Less(t, inv.last(testFunctions.Researchers), inv.first(testFunctions.Elsevier))
	assert.Less(t, inv.first(testFunctions.Elsevier), inv.first(testFunctions.Orcid))
	assert.Less(t, inv.first(testFunctions.Orcid), inv.first(testFunctions.Publications))

	researchers, ok := pipeline.Lookup(run, Researchers)
	require.True(t, ok)
	require.Len(t, researchers, 100)
	assert.JSONEq(t, `{"in":7}`, string(researchers[7]))

	assert.JSONEq(t, string(mustJSON(t, researchers)), inv.payloads[testFunctions.Elsevier][0])
	assert.JSONEq(t, `{"elsevier":"done"}`, inv.payloads[testFunctions.Orcid][0])

	pubs, ok := pipeline.Lookup(run, Publications)
	require.True(t, ok)
	assert.Len(t, pubs, 20)
}

func TestRun_BranchFailureFailsFanOut(t *testing.T) {
	inv := newFakeInvoker()
	inv.fail[testFunctions.Researchers] = errors.New("scrape failed")

	run, err := runner().RunWith(context.Background(), NewGraph(testConfig(), inv), Seed(indices(3)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), TaskFetchResearchers)
	assert.Equal(t, -1, inv.first(testFunctions.Elsevier))

	res, ok := run.Result(TaskFetchPublications)
	require.True(t, ok)
	assert.Equal(t, "SKIPPED", string(res.Status))
}

func TestRun_OrcidOutputMustBeList(t *testing.T) {
	inv := newFakeInvoker()
	inv.orcidOut = `{"not":"a list"}`

	_, err := runner().RunWith(context.Background(), NewGraph(testConfig(), inv), Seed(indices(1)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), TaskFetchOrcid)
	assert.Equal(t, -1, inv.first(testFunctions.Publications))
}

func TestRun_MissingIndices(t *testing.T) {
	_, err := runner().Run(context.Background(), NewGraph(testConfig(), newFakeInvoker()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `output "indices" not set`)
}

func repeat(s string, n int) string {
	out := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			out += ","
		}
		out += s
	}
	return out
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}
