// Package docs provides generated OpenAPI documentation.
//
// Batchdesk API
//
//	@title			Batchdesk API
//	@version		1.0
//	@description	Batch lifecycle API for grouping documents into review batches and coordinating reviewers.
//
//	@contact.name	API Support
//	@contact.url	https://github.com/ryanmcguirecode/batchdesk
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host		localhost:8080
//	@BasePath	/
//
//	@schemes	http https
package docs

//go:generate swag init -g ../cmd/batchdesk/serve.go -o ./swagger --parseDependency --parseInternal
