package endpoints

import (
	"encoding/json"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/ryanmcguirecode/batchdesk/internal/api"
	"github.com/ryanmcguirecode/batchdesk/internal/svcctx"
)

// SweepRequest selects which staleness policy the sweep applies.
type SweepRequest struct {
	Aggressive bool `json:"aggressive"`
}

// SweepResponse reports how many leases the sweep reclaimed.
type SweepResponse struct {
	Released int `json:"released"`
}

// SweepEndpoint handles POST /api/sweep. The server sweeps on its own
// interval as well; this is the on-demand trigger for schedulers and ops.
type SweepEndpoint struct{}

func (e *SweepEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/sweep", e.handler
}

func (e *SweepEndpoint) RequiresInit() bool { return true }

func (e *SweepEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req SweepRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	sw := svcctx.SweeperFrom(r.Context())
	released, err := sw.Sweep(r.Context(), req.Aggressive)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, SweepResponse{Released: released})
}

func (e *SweepEndpoint) Command(getServerURL func() string) *cobra.Command {
	var aggressive bool
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Reclaim batch leases with stale heartbeats",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp SweepResponse
			if err := client.Post(cmd.Context(), "/api/sweep", SweepRequest{Aggressive: aggressive}, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().BoolVar(&aggressive, "aggressive", false, "Use the aggressive staleness threshold")
	return cmd
}
