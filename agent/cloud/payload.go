package cloud

// Payload is a GraphQL request body: a query or mutation string plus its
// variables. Wire shape matches what the cloud backend expects, so the
// field names are fixed.
type Payload struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}
