package link

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/scibuild/fab/internal/buildconfig"
	"github.com/scibuild/fab/internal/runtime"
	"github.com/scibuild/fab/internal/store"
	"github.com/scibuild/fab/internal/toolrun"
	"github.com/scibuild/fab/internal/toolrun/toolrunmock"
)

func TestStep_LinksFromArchiveWhenOneExists(t *testing.T) {
	outDir := t.TempDir()

	ctrl := gomock.NewController(t)
	mockTool := toolrunmock.NewMockTool(ctrl)
	var seenArgs []string
	mockTool.EXPECT().
		Run(gomock.Any(), "ld", gomock.Any(), outDir).
		DoAndReturn(func(ctx context.Context, command string, args []string, dir string) (toolrun.Result, error) {
			seenArgs = args
			return toolrun.Result{Command: command}, nil
		})

	scope := runtime.NewScope()
	scope.Store.Set(store.ObjectFiles, map[string][]string{"um_main": {"/src/a.o"}})
	scope.Store.Set(store.ObjectArchives, map[string]string{"um_main": "/out/libum_main.a"})

	step := Step{Tool: mockTool, ToolCfg: buildconfig.Tool{Command: "ld", CommonFlags: []string{"-lm"}}, OutDir: outDir}
	require.NoError(t, step.Run(context.Background(), scope))

	assert.Equal(t, []string{"-o", outDir + "/um_main", "/out/libum_main.a", "-lm"}, seenArgs)

	executables, err := store.Get[[]string](scope.Store, store.Executables)
	require.NoError(t, err)
	assert.Equal(t, []string{outDir + "/um_main"}, executables)
}

func TestStep_FallsBackToObjectFilesWithoutAnArchive(t *testing.T) {
	outDir := t.TempDir()

	ctrl := gomock.NewController(t)
	mockTool := toolrunmock.NewMockTool(ctrl)
	var seenArgs []string
	mockTool.EXPECT().
		Run(gomock.Any(), "ld", gomock.Any(), outDir).
		DoAndReturn(func(ctx context.Context, command string, args []string, dir string) (toolrun.Result, error) {
			seenArgs = args
			return toolrun.Result{Command: command}, nil
		})

	scope := runtime.NewScope()
	scope.Store.Set(store.ObjectFiles, map[string][]string{"jules": {"/src/b.o", "/src/a.o"}})

	step := Step{Tool: mockTool, ToolCfg: buildconfig.Tool{Command: "ld"}, OutDir: outDir}
	require.NoError(t, step.Run(context.Background(), scope))

	assert.Equal(t, []string{"-o", outDir + "/jules", "/src/a.o", "/src/b.o"}, seenArgs)
}

func TestStep_ToolFailureReturnsFailed(t *testing.T) {
	outDir := t.TempDir()

	ctrl := gomock.NewController(t)
	mockTool := toolrunmock.NewMockTool(ctrl)
	mockTool.EXPECT().
		Run(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(toolrun.Result{Stderr: "undefined reference"}, &toolrun.ToolFailed{Result: toolrun.Result{Stderr: "undefined reference"}})

	scope := runtime.NewScope()
	scope.Store.Set(store.ObjectFiles, map[string][]string{"um_main": {"/src/a.o"}})

	step := Step{Tool: mockTool, ToolCfg: buildconfig.Tool{Command: "ld"}, OutDir: outDir}
	err := step.Run(context.Background(), scope)
	require.Error(t, err)
	var failed *Failed
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, "um_main", failed.Root)
}
