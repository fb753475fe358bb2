package assistant

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFencedJsonBlock(t *testing.T) {
	raw := "Here is what I did:\n```json\n{\"message\": \"added Customer entity\", \"changes\": {\"entities\": {\"create\": [{\"name\": \"Customer\"}]}}}\n```\nLet me know if you need anything else."

	reply := ParseReply(raw)

	assert.Equal(t, "added Customer entity", reply.Message)
	assert.False(t, reply.RequiresMoreInfo)

	var changes map[string]interface{}
	assert.NoError(t, json.Unmarshal(reply.Changes, &changes))
	assert.Contains(t, changes, "entities")
}

func TestParseFencedBlockWithoutLanguageTag(t *testing.T) {
	raw := "```\n{\"message\": \"ok\"}\n```"

	reply := ParseReply(raw)

	assert.Equal(t, "ok", reply.Message)
	assert.Nil(t, reply.Changes)
}

func TestParseBareJsonBlock(t *testing.T) {
	raw := `Sure. {"message": "renamed {old} to Account", "requiresMoreInfo": false} Done.`

	reply := ParseReply(raw)

	assert.Equal(t, "renamed {old} to Account", reply.Message)
	assert.False(t, reply.RequiresMoreInfo)
}

func TestParseNoJsonDegradesToClarification(t *testing.T) {
	raw := "Could you tell me which entity you mean?"

	reply := ParseReply(raw)

	assert.Equal(t, raw, reply.Message)
	assert.True(t, reply.RequiresMoreInfo)
	assert.Nil(t, reply.Changes)
}

func TestParseMalformedJsonDegradesToClarification(t *testing.T) {
	raw := "```json\n{\"message\": \"oops\", \n```"

	reply := ParseReply(raw)

	assert.Equal(t, raw, reply.Message)
	assert.True(t, reply.RequiresMoreInfo)
}

func TestParseRequiredInfo(t *testing.T) {
	raw := `{"message": "need more detail", "requiresMoreInfo": true, "requiredInfo": ["entity name", "data type"]}`

	reply := ParseReply(raw)

	assert.True(t, reply.RequiresMoreInfo)
	assert.Equal(t, []string{"entity name", "data type"}, reply.RequiredInfo)
}
