package recorder

import (
	"fmt"
	"strings"
	"time"
)

// Instructions returns the operator briefing shown before a recording starts.
func Instructions(interval time.Duration, segments int) string {
	secs := interval.Seconds()
	var b strings.Builder
	b.WriteString("The road will be recorded from the pointer movement.\n")
	fmt.Fprintf(&b, "- Recording starts %g seconds after you confirm.\n", secs)
	fmt.Fprintf(&b, "- Within those %g seconds, place the pointer on the 0h position.\n", secs)
	fmt.Fprintf(&b, "- Then move it from 0h to 1h over %g seconds.\n", secs)
	fmt.Fprintf(&b, "- Continue every %g seconds: 1h to 2h, 2h to 3h, and so on.\n", secs)
	fmt.Fprintf(&b, "- The road is complete once %dh to %dh has been recorded.\n", segments-1, segments)
	return b.String()
}
