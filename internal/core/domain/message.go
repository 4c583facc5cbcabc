package domain

// PipelineMessage is the small body carried on the classification and
// specialized queues. FieldsRef points at the stored extracted fields (the
// document id) rather than embedding the payload, to bound message size.
type PipelineMessage struct {
	DocumentID string `json:"document_id"`
	ClientID   string `json:"client_id"`
	FieldsRef  string `json:"fields_ref"`
}
