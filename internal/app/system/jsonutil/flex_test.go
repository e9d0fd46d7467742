package jsonutil

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestInt_Unmarshal(t *testing.T) {
	tests := []struct {
		in      string
		want    *int
		wantErr bool
	}{
		{in: `{"n":3}`, want: intp(3)},
		{in: `{"n":"5"}`, want: intp(5)},
		{in: `{"n":" 7 "}`, want: intp(7)},
		{in: `{"n":null}`},
		{in: `{}`},
		{in: `{"n":"abc"}`, wantErr: true},
		{in: `{"n":2.5}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var dst struct {
				N *Int `json:"n"`
			}
			err := json.Unmarshal([]byte(tt.in), &dst)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			got := IntPtr(dst.N)
			if (got == nil) != (tt.want == nil) || (got != nil && *got != *tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStringList_Unmarshal(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{in: `{"tags":["a","b"]}`, want: []string{"a", "b"}},
		{in: `{"tags":"a, b"}`, want: []string{"a", " b"}},
		{in: `{"tags":null}`},
		{in: `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var dst struct {
				Tags StringList `json:"tags"`
			}
			if err := json.Unmarshal([]byte(tt.in), &dst); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if !reflect.DeepEqual([]string(dst.Tags), tt.want) {
				t.Errorf("got %#v, want %#v", dst.Tags, tt.want)
			}
		})
	}
}

func intp(v int) *int { return &v }
