package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/ryanmcguirecode/batchdesk/internal/api"
	"github.com/ryanmcguirecode/batchdesk/internal/lease"
	"github.com/ryanmcguirecode/batchdesk/internal/svcctx"
)

// AcquireRequest is the request body for checking out a batch.
type AcquireRequest struct {
	CallerID     string `json:"caller_id"`
	Organization string `json:"organization"`
}

// AcquireResponse reports whether the lease was granted.
type AcquireResponse struct {
	Acquired bool   `json:"acquired"`
	Error    string `json:"error,omitempty"`
}

// AcquireEndpoint handles POST /api/batches/{id}/acquire.
type AcquireEndpoint struct{}

func (e *AcquireEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/batches/{id}/acquire", e.handler
}

func (e *AcquireEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Check out a batch
//	@Description	Take the exclusive review lease on a batch
//	@Tags			batches
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Batch ID"
//	@Param			request	body		AcquireRequest	true	"Acquire request"
//	@Success		200		{object}	AcquireResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		403		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		409		{object}	AcquireResponse
//	@Router			/api/batches/{id}/acquire [post]
func (e *AcquireEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	batchID := r.PathValue("id")

	var req AcquireRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CallerID == "" {
		writeError(w, http.StatusBadRequest, "caller_id is required")
		return
	}
	if req.Organization == "" {
		writeError(w, http.StatusBadRequest, "organization is required")
		return
	}

	leases := svcctx.LeasesFrom(r.Context())
	err := leases.Acquire(r.Context(), batchID, req.CallerID, req.Organization)
	if err != nil {
		var held *lease.HeldError
		if errors.As(err, &held) {
			writeJSON(w, http.StatusConflict, AcquireResponse{Acquired: false, Error: held.Error()})
			return
		}
		writeError(w, statusForError(err, http.StatusForbidden), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, AcquireResponse{Acquired: true})
}

func (e *AcquireEndpoint) Command(getServerURL func() string) *cobra.Command {
	var callerID, organization string
	cmd := &cobra.Command{
		Use:   "acquire <batch-id>",
		Short: "Check out a batch for review",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp AcquireResponse
			path := fmt.Sprintf("/api/batches/%s/acquire", args[0])
			req := AcquireRequest{CallerID: callerID, Organization: organization}
			if err := client.Post(cmd.Context(), path, req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&callerID, "caller", "", "Caller ID taking the lease (required)")
	cmd.Flags().StringVar(&organization, "org", "", "Organization (required)")
	cmd.MarkFlagRequired("caller")
	cmd.MarkFlagRequired("org")
	return cmd
}
