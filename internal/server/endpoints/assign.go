package endpoints

import (
	"encoding/json"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/ryanmcguirecode/batchdesk/internal/api"
	"github.com/ryanmcguirecode/batchdesk/internal/svcctx"
)

// AssignRequest is the request body for batching an existing document.
type AssignRequest struct {
	Document     string `json:"document"`
	Organization string `json:"organization"`
}

// AssignResponse confirms the assignment.
type AssignResponse struct {
	Assigned bool `json:"assigned"`
}

// AssignEndpoint handles POST /api/assign — the narrow surface the
// ingestion pipeline calls for documents it has already stored.
type AssignEndpoint struct{}

func (e *AssignEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/assign", e.handler
}

func (e *AssignEndpoint) RequiresInit() bool { return true }

func (e *AssignEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req AssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Document == "" {
		writeError(w, http.StatusBadRequest, "document is required")
		return
	}
	if req.Organization == "" {
		writeError(w, http.StatusBadRequest, "organization is required")
		return
	}

	assigner := svcctx.AssignerFrom(r.Context())
	if err := assigner.Assign(r.Context(), req.Document, req.Organization); err != nil {
		writeError(w, statusForError(err, http.StatusForbidden), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, AssignResponse{Assigned: true})
}

func (e *AssignEndpoint) Command(getServerURL func() string) *cobra.Command {
	var organization string
	cmd := &cobra.Command{
		Use:   "assign <document-id>",
		Short: "Assign an existing document to a batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp AssignResponse
			req := AssignRequest{Document: args[0], Organization: organization}
			if err := client.Post(cmd.Context(), "/api/assign", req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&organization, "org", "", "Organization (required)")
	cmd.MarkFlagRequired("org")
	return cmd
}
