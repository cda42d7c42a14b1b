package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
)

var (
	messagesSucceeded atomic.Int64
	messagesFailed    atomic.Int64
	messagesErrored   atomic.Int64
	remindersSent     atomic.Int64
	remindersFailed   atomic.Int64

	intentMu     sync.Mutex
	intentCounts = map[string]int64{}

	sweepMu      sync.Mutex
	sweepRuns    = map[string]int64{}
	sweepSkipped = map[string]int64{}
)

// ObserveMessage records one handled chat message. errored marks messages
// that hit an internal failure rather than a domain "not found".
func ObserveMessage(intent string, success, errored bool) {
	switch {
	case errored:
		messagesErrored.Add(1)
	case success:
		messagesSucceeded.Add(1)
	default:
		messagesFailed.Add(1)
	}

	intentMu.Lock()
	intentCounts[intent]++
	intentMu.Unlock()
}

func ObserveReminder(delivered bool) {
	if delivered {
		remindersSent.Add(1)
		return
	}
	remindersFailed.Add(1)
}

func ObserveSweep(job string, skipped bool) {
	sweepMu.Lock()
	defer sweepMu.Unlock()
	if skipped {
		sweepSkipped[job]++
		return
	}
	sweepRuns[job]++
}

// Reset zeroes every counter. Tests only.
func Reset() {
	messagesSucceeded.Store(0)
	messagesFailed.Store(0)
	messagesErrored.Store(0)
	remindersSent.Store(0)
	remindersFailed.Store(0)

	intentMu.Lock()
	intentCounts = map[string]int64{}
	intentMu.Unlock()

	sweepMu.Lock()
	sweepRuns = map[string]int64{}
	sweepSkipped = map[string]int64{}
	sweepMu.Unlock()
}

func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WritePrometheus(w)
	})
}

func WritePrometheus(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	fmt.Fprintf(w, "# HELP nurse_agent_messages_total Chat messages handled, by outcome.\n")
	fmt.Fprintf(w, "# TYPE nurse_agent_messages_total counter\n")
	fmt.Fprintf(w, "nurse_agent_messages_total{outcome=\"success\"} %d\n", messagesSucceeded.Load())
	fmt.Fprintf(w, "nurse_agent_messages_total{outcome=\"failure\"} %d\n", messagesFailed.Load())
	fmt.Fprintf(w, "nurse_agent_messages_total{outcome=\"error\"} %d\n", messagesErrored.Load())

	fmt.Fprintf(w, "# HELP nurse_agent_intents_total Chat messages handled, by detected intent.\n")
	fmt.Fprintf(w, "# TYPE nurse_agent_intents_total counter\n")
	intentMu.Lock()
	for _, k := range sortedKeys(intentCounts) {
		fmt.Fprintf(w, "nurse_agent_intents_total{intent=%q} %d\n", k, intentCounts[k])
	}
	intentMu.Unlock()

	fmt.Fprintf(w, "# HELP nurse_agent_reminders_total Reminder deliveries, by result.\n")
	fmt.Fprintf(w, "# TYPE nurse_agent_reminders_total counter\n")
	fmt.Fprintf(w, "nurse_agent_reminders_total{result=\"sent\"} %d\n", remindersSent.Load())
	fmt.Fprintf(w, "nurse_agent_reminders_total{result=\"failed\"} %d\n", remindersFailed.Load())

	sweepMu.Lock()
	fmt.Fprintf(w, "# HELP nurse_agent_sweeps_total Reminder sweeps executed, by job.\n")
	fmt.Fprintf(w, "# TYPE nurse_agent_sweeps_total counter\n")
	for _, k := range sortedKeys(sweepRuns) {
		fmt.Fprintf(w, "nurse_agent_sweeps_total{job=%q} %d\n", k, sweepRuns[k])
	}
	fmt.Fprintf(w, "# HELP nurse_agent_sweeps_skipped_total Ticks skipped because the previous sweep was still running or another replica held the lock.\n")
	fmt.Fprintf(w, "# TYPE nurse_agent_sweeps_skipped_total counter\n")
	for _, k := range sortedKeys(sweepSkipped) {
		fmt.Fprintf(w, "nurse_agent_sweeps_skipped_total{job=%q} %d\n", k, sweepSkipped[k])
	}
	sweepMu.Unlock()
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
