package cli

import (
	"context"
	"fmt"

	"github.com/ecodata/fieldsync/internal/client/models"
)

// List prints every queued record grouped by form type.
func (a *App) List(ctx context.Context) error {
	total := 0
	for _, ft := range models.AllFormTypes {
		records, err := a.queues.List(ctx, ft)
		if err != nil {
			fmt.Fprintf(a.out, "Could not read %s queue: %v\n", ft, err)
			continue
		}
		if len(records) == 0 {
			continue
		}

		fmt.Fprintf(a.out, "%s (%d pending):\n", ft, len(records))
		for _, rec := range records {
			fmt.Fprintf(a.out, "  %s  created %s  photos %d\n",
				rec.FormID, rec.CreatedAt.Format("2006-01-02 15:04"), len(rec.AttachmentIDs))
		}
		total += len(records)
	}

	if total == 0 {
		fmt.Fprintln(a.out, "Nothing pending, all records delivered.")
	}
	return nil
}
