// Package logging builds the process-wide structured logger.
package logging

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/config"
)

// New returns a logger that writes JSON lines to stdout, or a readable
// format when pretty logs are enabled.
func New(cfg *config.Config) ectologger.Logger {
	encoder := json.NewEncoder(os.Stdout)
	return ectologger.NewEctoLogger(func(msg ectologger.EctoLogMessage) {
		if cfg.PrettyLogs {
			fmt.Fprintf(os.Stdout, "%+v\n", msg)
			return
		}
		_ = encoder.Encode(msg)
	})
}
