package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/ryanmcguirecode/batchdesk/internal/api"
	"github.com/ryanmcguirecode/batchdesk/internal/svcctx"
)

// SaveProgressRequest is the request body for saving review progress.
type SaveProgressRequest struct {
	Organization  string         `json:"organization"`
	Document      string         `json:"document"`
	DocumentIndex *int           `json:"document_index"`
	Fields        map[string]any `json:"fields,omitempty"`
}

// SaveProgressResponse confirms the save.
type SaveProgressResponse struct {
	Saved bool `json:"saved"`
}

// SaveProgressEndpoint handles POST /api/batches/{id}/progress.
type SaveProgressEndpoint struct{}

func (e *SaveProgressEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/batches/{id}/progress", e.handler
}

func (e *SaveProgressEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Save review progress
//	@Description	Record the reviewer's position and apply edited field values to the current document
//	@Tags			batches
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Batch ID"
//	@Param			request	body		SaveProgressRequest	true	"Progress to save"
//	@Success		200		{object}	SaveProgressResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse	"lease lost; reacquire the batch"
//	@Router			/api/batches/{id}/progress [post]
func (e *SaveProgressEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	batchID := r.PathValue("id")

	var req SaveProgressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Organization == "" {
		writeError(w, http.StatusBadRequest, "organization is required")
		return
	}
	if req.Document == "" {
		writeError(w, http.StatusBadRequest, "document is required")
		return
	}
	if req.DocumentIndex == nil {
		writeError(w, http.StatusBadRequest, "document_index is required")
		return
	}

	rev := svcctx.ReviewFrom(r.Context())
	err := rev.SaveProgress(r.Context(), batchID, req.Organization, *req.DocumentIndex, req.Document, req.Fields)
	if err != nil {
		writeError(w, statusForError(err, http.StatusUnauthorized), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, SaveProgressResponse{Saved: true})
}

func (e *SaveProgressEndpoint) Command(getServerURL func() string) *cobra.Command {
	var (
		organization string
		document     string
		index        int
		fieldsJSON   string
	)
	cmd := &cobra.Command{
		Use:   "progress <batch-id>",
		Short: "Save review progress for a batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := SaveProgressRequest{
				Organization:  organization,
				Document:      document,
				DocumentIndex: &index,
			}
			if fieldsJSON != "" {
				if err := json.Unmarshal([]byte(fieldsJSON), &req.Fields); err != nil {
					return fmt.Errorf("invalid --fields JSON: %w", err)
				}
			}

			client := api.NewClient(getServerURL())
			var resp SaveProgressResponse
			path := fmt.Sprintf("/api/batches/%s/progress", args[0])
			if err := client.Post(cmd.Context(), path, req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&organization, "org", "", "Organization (required)")
	cmd.Flags().StringVar(&document, "document", "", "Document ID at the current position (required)")
	cmd.Flags().IntVar(&index, "index", 0, "Document index within the batch")
	cmd.Flags().StringVar(&fieldsJSON, "fields", "", "Edited field values as JSON")
	cmd.MarkFlagRequired("org")
	cmd.MarkFlagRequired("document")
	return cmd
}
