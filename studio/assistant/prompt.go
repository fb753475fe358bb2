package assistant

import (
	"encoding/json"
	"fmt"
)

const systemPromptTemplate = `You are a data-modeling assistant. The user's current data model is given below as JSON.

Current model:
%s

Apply the user's instructions to the model. Always reply with a json block of the form:

` + "```json" + `
{
  "message": "<summary of what you changed or what you need to know>",
  "changes": {
    "entities": {"create": [...], "update": [...], "delete": [...]},
    "attributes": {"create": [...], "update": [...], "delete": [...]},
    "relationships": {"create": [...], "update": [...], "delete": [...]},
    "referentials": {"create": [...], "update": [...], "delete": [...]}
  }
}
` + "```" + `

If the instruction is ambiguous or you need more information, omit "changes" and instead set "requiresMoreInfo" to true and list the missing details in "requiredInfo".`

// BuildSystemPrompt embeds a snapshot of the current model into the system prompt.
// The snapshot must marshal to json; anything serializable works, the assistant
// service passes the same structure the export endpoint produces.
func BuildSystemPrompt(snapshot interface{}) (string, error) {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("error serializing model snapshot: %w", err)
	}
	return fmt.Sprintf(systemPromptTemplate, string(data)), nil
}
