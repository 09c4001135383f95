package syntax

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		path    string
		content string
		wantErr bool
	}{
		{
			name: "valid jsx",
			path: "FloorPage.jsx",
			content: `export default function FloorPage() {
    const handleTableClick = async (table) => {
        toast.success(` + "`Opening POS for ${table.name}`" + `);
    };
    return <div className="floor">{tables.map(t => <span key={t.id}>{t.name}</span>)}</div>;
}
`,
		},
		{
			name:    "broken jsx",
			path:    "FloorPage.jsx",
			content: "export default function FloorPage() {\n    return <div>;\n",
			wantErr: true,
		},
		{
			name:    "valid go",
			path:    "main.go",
			content: "package main\n\nfunc main() {}\n",
		},
		{
			name:    "broken go",
			path:    "main.go",
			content: "package main\n\nfunc main() {\n",
			wantErr: true,
		},
		{
			name:    "valid python",
			path:    "fix.py",
			content: "print('ok')\n",
		},
		{
			name:    "unchecked extension",
			path:    "notes.txt",
			content: "{{{ not code",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Check(ctx, tt.path, []byte(tt.content))
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSyntax)

			var synErr *Error
			require.True(t, errors.As(err, &synErr))
			assert.Equal(t, tt.path, synErr.Path)
			assert.Positive(t, synErr.Line)
		})
	}
}

func TestLanguageFor(t *testing.T) {
	assert.NotNil(t, LanguageFor("a.JSX"))
	assert.NotNil(t, LanguageFor("a.tsx"))
	assert.NotNil(t, LanguageFor("a.ts"))
	assert.Nil(t, LanguageFor("a.css"))
}
