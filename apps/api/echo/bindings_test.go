package echoapi

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/masomo-fees/core"
)

func Test_parseOrdering(t *testing.T) {
	tests := []struct {
		param string
		want  []core.DBOrdering
	}{
		{param: "", want: nil},
		{param: " , ,- ", want: nil},
		{param: "amount", want: []core.DBOrdering{{Field: "amount", Ascending: true}}},
		{
			param: "-due_date,,amount",
			want:  []core.DBOrdering{{Field: "due_date"}, {Field: "amount", Ascending: true}},
		},
		{
			param: " - created_at , student_name ",
			want:  []core.DBOrdering{{Field: "created_at"}, {Field: "student_name", Ascending: true}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.param, func(t *testing.T) {
			assert.Equal(t, tt.want, parseOrdering(tt.param))
		})
	}
}
