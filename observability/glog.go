package observability

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/golang/glog"
)

// GlogObserver writes events through glog. Verbose events are only written
// at -v=1 and above.
type GlogObserver struct{}

func (GlogObserver) OnEvent(ctx context.Context, event Event) {
	line := FormatEvent(event)
	switch {
	case event.Level <= LevelVerbose+3:
		if glog.V(1) {
			glog.InfoDepth(1, line)
		}
	case event.Level <= LevelInfo+3:
		glog.InfoDepth(1, line)
	case event.Level <= LevelWarning+3:
		glog.WarningDepth(1, line)
	default:
		glog.ErrorDepth(1, line)
	}
}

// FormatEvent renders event as "type source k=v ..." with sorted keys.
func FormatEvent(event Event) string {
	var b strings.Builder
	b.WriteString(string(event.Type))
	if event.Source != "" {
		fmt.Fprintf(&b, " [%s]", event.Source)
	}

	for _, k := range sortedKeys(event.Data) {
		fmt.Fprintf(&b, " %s=%v", k, event.Data[k])
	}
	return b.String()
}

func sortedKeys(data map[string]any) []string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
