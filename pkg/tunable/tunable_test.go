package tunable

import (
	"sync"
	"testing"

	"github.com/edaniels/golog"
	"go.viam.com/test"
)

func TestNudgeFloorsAtZero(t *testing.T) {
	n := &Tunable{Name: "kd", Step: 0.5}
	test.That(t, n.Nudge(1), test.ShouldEqual, 0.5)
	test.That(t, n.Nudge(-3), test.ShouldEqual, 0.0)
	test.That(t, n.Get(), test.ShouldEqual, 0.0)
}

func TestSelectionWraps(t *testing.T) {
	ts := New(golog.NewTestLogger(t))
	test.That(t, ts.Current(), test.ShouldBeNil)
	ts.Adjust(1)

	kp := ts.Create("kp", 15, 1)
	ki := ts.Create("ki", 3.75, 0.25)
	test.That(t, ts.Current(), test.ShouldEqual, kp)
	test.That(t, ts.SelectNext(), test.ShouldEqual, ki)
	test.That(t, ts.SelectNext(), test.ShouldEqual, kp)
	test.That(t, ts.SelectPrev(), test.ShouldEqual, ki)

	changes := 0
	ts.OnChange = func() { changes++ }
	ts.Adjust(2)
	test.That(t, ki.Get(), test.ShouldEqual, 4.25)
	test.That(t, kp.Get(), test.ShouldEqual, 15.0)
	test.That(t, changes, test.ShouldEqual, 1)
	test.That(t, len(ts.All()), test.ShouldEqual, 2)
}

func TestConcurrentNudges(t *testing.T) {
	n := &Tunable{Name: "kp", Step: 1}
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n.Nudge(1)
		}()
	}
	wg.Wait()
	test.That(t, n.Get(), test.ShouldEqual, 50.0)
}
