package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/ryanmcguirecode/batchdesk/internal/api"
	"github.com/ryanmcguirecode/batchdesk/internal/svcctx"
)

// HeartbeatRequest is the request body for the session keep-alive.
type HeartbeatRequest struct {
	Organization string `json:"organization"`
}

// HeartbeatResponse confirms the heartbeat was recorded.
type HeartbeatResponse struct {
	Alive bool `json:"alive"`
}

// HeartbeatEndpoint handles POST /api/batches/{id}/heartbeat. Progress
// saves refresh the heartbeat implicitly; this lightweight keep-alive
// covers sessions idling on a single document.
type HeartbeatEndpoint struct{}

func (e *HeartbeatEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/batches/{id}/heartbeat", e.handler
}

func (e *HeartbeatEndpoint) RequiresInit() bool { return true }

func (e *HeartbeatEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	batchID := r.PathValue("id")

	var req HeartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Organization == "" {
		writeError(w, http.StatusBadRequest, "organization is required")
		return
	}

	leases := svcctx.LeasesFrom(r.Context())
	if err := leases.Heartbeat(r.Context(), batchID, req.Organization); err != nil {
		writeError(w, statusForError(err, http.StatusForbidden), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, HeartbeatResponse{Alive: true})
}

func (e *HeartbeatEndpoint) Command(getServerURL func() string) *cobra.Command {
	var organization string
	cmd := &cobra.Command{
		Use:   "heartbeat <batch-id>",
		Short: "Refresh a batch lease heartbeat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp HeartbeatResponse
			path := fmt.Sprintf("/api/batches/%s/heartbeat", args[0])
			if err := client.Post(cmd.Context(), path, HeartbeatRequest{Organization: organization}, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&organization, "org", "", "Organization (required)")
	cmd.MarkFlagRequired("org")
	return cmd
}
