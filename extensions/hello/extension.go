package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/portcullis-dev/portcullis/sdk"
)

type greetInput struct {
	Name  string `json:"name" validate:"required" jsonschema:"description=Who to greet"`
	Shout bool   `json:"shout,omitempty" jsonschema:"description=Greet in capitals"`
}

func init() {
	schema, err := sdk.GenerateSchema(greetInput{})
	if err != nil {
		panic(err)
	}
	sdk.Serve(sdk.New("hello", "0.1.0").
		Description("Greets people and demonstrates the extension surface").
		Requires("read:banner.txt", "env:USER", "log").
		Tool("greet", "Compose a greeting", schema, greet).
		SlashCommand("hello", "Greet the operator", helloCommand).
		OnEvent("session-start", sessionStart))
}

func greet(ctx context.Context, input json.RawMessage) (sdk.ToolResult, error) {
	var in greetInput
	if err := sdk.DecodeInput(input, &in); err != nil {
		return sdk.ToolResult{}, err
	}
	greeting := fmt.Sprintf("Hello, %s!", in.Name)
	if in.Shout {
		greeting = strings.ToUpper(greeting)
	}
	sdk.Logger().InfoContext(ctx, "greeted", "name", in.Name)
	return sdk.ToolResult{
		Content: greeting,
		Details: map[string]any{"length": len(greeting)},
	}, nil
}

func helloCommand(ctx context.Context, args string) (string, error) {
	name := strings.TrimSpace(args)
	if name == "" {
		if user, ok, err := sdk.Getenv(ctx, "USER"); err == nil && ok {
			name = user
		} else {
			name = "stranger"
		}
	}
	return "Hello, " + name + "!", nil
}

// sessionStart reads an optional banner from the workspace so a session
// can open with a custom greeting.
func sessionStart(ctx context.Context, _ json.RawMessage) (json.RawMessage, error) {
	data, truncated, err := sdk.ReadFile(ctx, "banner.txt")
	if err != nil || len(data) == 0 {
		return nil, nil
	}
	sdk.Logger().InfoContext(ctx, "loaded banner", "bytes", len(data), "truncated", truncated)
	return json.Marshal(map[string]string{"banner": strings.TrimSpace(string(data))})
}
