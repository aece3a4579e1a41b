package worker

import (
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"mapslead/metrics"
	"mapslead/testutil"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// scriptedRandom replays fixed draws; once exhausted Intn returns 0 and
// Float64 returns 0.99 (no engagement).
type scriptedRandom struct {
	mu     sync.Mutex
	ints   []int
	floats []float64
}

func (r *scriptedRandom) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.ints) == 0 {
		return 0
	}
	v := r.ints[0]
	r.ints = r.ints[1:]
	return v % n
}

func (r *scriptedRandom) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.floats) == 0 {
		return 0.99
	}
	v := r.floats[0]
	r.floats = r.floats[1:]
	return v
}

type harness struct {
	db   *gorm.DB
	sup  *Supervisor
	sims *Simulations
}

func newHarness(t *testing.T, rnd Random) *harness {
	t.Helper()
	db := testutil.NewDB(t)
	m := metrics.NewNop()
	log := testLogger()

	sup := NewSupervisor(log, m)
	scraper := NewScrapeSimulator(db, rnd, 0, m, log)
	campaigns := NewCampaignSimulator(db, rnd, 0, m, log)
	sims := NewSimulations(db, sup, scraper, campaigns, rnd, log)

	return &harness{db: db, sup: sup, sims: sims}
}
