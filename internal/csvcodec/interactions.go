package csvcodec

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/kalambet/prospect/internal/storage"
)

const interactionHeader = "when,what,notes,where,why,next_follow_up"

// InteractionsToCSV writes the interaction log export. Times are epoch
// milliseconds and every text column is quoted; an unset follow-up is an
// empty quoted field.
func InteractionsToCSV(w io.Writer, list []storage.Interaction) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, interactionHeader)
	for _, i := range list {
		followUp := ""
		if i.NextFollowUpAt != nil {
			followUp = strconv.FormatInt(i.NextFollowUpAt.UnixMilli(), 10)
		}
		fmt.Fprintf(bw, "%d,%s,%s,%s,%s,%s\n",
			i.WhenAt.UnixMilli(),
			quote(i.WhatType),
			quote(i.WhatNotes),
			quote(i.WhereText),
			quote(i.WhySummary),
			quote(followUp),
		)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("writing interactions csv: %w", err)
	}
	return nil
}
