package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/ryanmcguirecode/batchdesk/internal/api"
	"github.com/ryanmcguirecode/batchdesk/internal/svcctx"
)

// ReleaseRequest is the request body for giving up a batch lease.
type ReleaseRequest struct {
	Organization string `json:"organization"`
}

// ReleaseResponse confirms the lease was cleared.
type ReleaseResponse struct {
	Released bool `json:"released"`
}

// ReleaseEndpoint handles POST /api/batches/{id}/release.
type ReleaseEndpoint struct{}

func (e *ReleaseEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/batches/{id}/release", e.handler
}

func (e *ReleaseEndpoint) RequiresInit() bool { return true }

func (e *ReleaseEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	batchID := r.PathValue("id")

	var req ReleaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Organization == "" {
		writeError(w, http.StatusBadRequest, "organization is required")
		return
	}

	leases := svcctx.LeasesFrom(r.Context())
	if err := leases.Release(r.Context(), batchID, req.Organization); err != nil {
		writeError(w, statusForError(err, http.StatusForbidden), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, ReleaseResponse{Released: true})
}

func (e *ReleaseEndpoint) Command(getServerURL func() string) *cobra.Command {
	var organization string
	cmd := &cobra.Command{
		Use:   "release <batch-id>",
		Short: "Release a batch lease",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ReleaseResponse
			path := fmt.Sprintf("/api/batches/%s/release", args[0])
			if err := client.Post(cmd.Context(), path, ReleaseRequest{Organization: organization}, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&organization, "org", "", "Organization (required)")
	cmd.MarkFlagRequired("org")
	return cmd
}

// UnlockEndpoint handles POST /api/batches/{id}/unlock — the ops
// force-release, same primitive the liveness sweep uses. No caller
// validation; the stale session's next save fails with a reacquire error.
type UnlockEndpoint struct{}

func (e *UnlockEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/batches/{id}/unlock", e.handler
}

func (e *UnlockEndpoint) RequiresInit() bool { return true }

func (e *UnlockEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	batchID := r.PathValue("id")

	leases := svcctx.LeasesFrom(r.Context())
	if err := leases.ForceRelease(r.Context(), batchID); err != nil {
		writeError(w, statusForError(err, http.StatusForbidden), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, ReleaseResponse{Released: true})
}

func (e *UnlockEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "unlock <batch-id>",
		Short: "Force-release a batch lease (ops)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ReleaseResponse
			path := fmt.Sprintf("/api/batches/%s/unlock", args[0])
			if err := client.Post(cmd.Context(), path, nil, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
