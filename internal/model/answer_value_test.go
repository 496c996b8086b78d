package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeAnswerValue(t *testing.T) {
	tests := []struct {
		name    string
		qType   QuestionType
		raw     string
		want    AnswerValue
		wantErr bool
	}{
		{
			name:  "scalar round trip",
			qType: ShortAnswer,
			raw:   ScalarAnswer("paris").Encode(),
			want:  ScalarAnswer("paris"),
		},
		{
			name:  "composite round trip",
			qType: MatchingHeadings,
			raw:   CompositeAnswer(map[string]string{"A": "iv"}).Encode(),
			want:  CompositeAnswer(map[string]string{"A": "iv"}),
		},
		{
			name:  "empty raw scalar",
			qType: ShortAnswer,
			raw:   "",
			want:  ScalarAnswer(""),
		},
		{
			name:  "empty raw composite",
			qType: TableCompletion,
			raw:   "",
			want:  CompositeAnswer(nil),
		},
		{
			name:    "scalar payload for composite type",
			qType:   MapLabeling,
			raw:     ScalarAnswer("north gate").Encode(),
			wantErr: true,
		},
		{
			name:    "composite payload for scalar type",
			qType:   MultipleChoice,
			raw:     CompositeAnswer(map[string]string{"A": "b"}).Encode(),
			wantErr: true,
		},
		{
			name:    "garbage payload",
			qType:   ShortAnswer,
			raw:     "{not json",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeAnswerValue(tt.qType, tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAnswerValueIsEmpty(t *testing.T) {
	assert.True(t, ScalarAnswer("").IsEmpty())
	assert.False(t, ScalarAnswer("x").IsEmpty())
	assert.True(t, CompositeAnswer(nil).IsEmpty())
	assert.False(t, CompositeAnswer(map[string]string{"A": "x"}).IsEmpty())
}
