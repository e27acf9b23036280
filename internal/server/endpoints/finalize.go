package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/ryanmcguirecode/batchdesk/internal/api"
	"github.com/ryanmcguirecode/batchdesk/internal/svcctx"
)

// FinalizeRequest is the request body for completing a batch.
type FinalizeRequest struct {
	Organization string `json:"organization"`

	// Partial marks only the documents already stepped through as reviewed
	// and returns the remainder to the assignable pool ("save and exit").
	Partial bool `json:"partial"`
}

// FinalizeResponse confirms finalization.
type FinalizeResponse struct {
	Finalized bool `json:"finalized"`
	Partial   bool `json:"partial"`
}

// FinalizeEndpoint handles POST /api/batches/{id}/finalize.
type FinalizeEndpoint struct{}

func (e *FinalizeEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/batches/{id}/finalize", e.handler
}

func (e *FinalizeEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Finalize a batch
//	@Description	Mark the batch's documents reviewed, fully or partially
//	@Tags			batches
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Batch ID"
//	@Param			request	body		FinalizeRequest	true	"Finalize request"
//	@Success		200		{object}	FinalizeResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse	"lease lost; reacquire the batch"
//	@Router			/api/batches/{id}/finalize [post]
func (e *FinalizeEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	batchID := r.PathValue("id")

	var req FinalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Organization == "" {
		writeError(w, http.StatusBadRequest, "organization is required")
		return
	}

	rev := svcctx.ReviewFrom(r.Context())
	if err := rev.Finalize(r.Context(), batchID, req.Organization, req.Partial); err != nil {
		writeError(w, statusForError(err, http.StatusUnauthorized), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, FinalizeResponse{Finalized: true, Partial: req.Partial})
}

func (e *FinalizeEndpoint) Command(getServerURL func() string) *cobra.Command {
	var (
		organization string
		partial      bool
	)
	cmd := &cobra.Command{
		Use:   "finalize <batch-id>",
		Short: "Finalize a batch, fully or partially",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp FinalizeResponse
			path := fmt.Sprintf("/api/batches/%s/finalize", args[0])
			req := FinalizeRequest{Organization: organization, Partial: partial}
			if err := client.Post(cmd.Context(), path, req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&organization, "org", "", "Organization (required)")
	cmd.Flags().BoolVar(&partial, "partial", false, "Save and exit: finalize only documents already stepped through")
	cmd.MarkFlagRequired("org")
	return cmd
}
