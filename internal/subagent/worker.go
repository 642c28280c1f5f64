package subagent

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"koda/internal/client"
	"koda/internal/tools"
)

// maxWorkerIterations bounds a single subagent conversation.
const maxWorkerIterations = 25

// systemPrompt returns the instruction set for a subagent type.
func systemPrompt(subagentType string) string {
	switch subagentType {
	case tools.SubagentExplore:
		return "You are a codebase exploration agent. Investigate the question " +
			"using the available read-only tools and report your findings as a " +
			"concise summary with file paths and line references. Do not propose " +
			"changes."
	case tools.SubagentPlan:
		return "You are a planning agent. Study the relevant code with the " +
			"available read-only tools and produce a step-by-step implementation " +
			"plan with the files each step touches. Do not make changes."
	case tools.SubagentTestRunner:
		return "You are a test execution agent working in an isolated copy of " +
			"the workspace. Run the requested tests with the bash tool, then " +
			"report which passed and which failed with the relevant output."
	case tools.SubagentBuildValidator:
		return "You are a build validation agent working in an isolated copy of " +
			"the workspace. Build the project with the bash tool and report " +
			"errors verbatim, or confirm a clean build."
	case tools.SubagentCodeReviewer:
		return "You are a code review agent working in an isolated copy of the " +
			"workspace. Read the code in question and report defects, risks, and " +
			"concrete improvement suggestions with file and line references."
	default:
		return "You are a focused assistant. Complete the task and report the result."
	}
}

// runConversation drives one subagent's tool loop to completion and
// returns its final report.
func runConversation(ctx context.Context, provider client.Provider, registry *tools.Registry, instructions string) (string, error) {
	history := []*genai.Content{
		genai.NewContentFromText(instructions, genai.RoleUser),
	}
	declarations := tools.Declarations(registry.All())

	var lastText string
	for i := 0; i < maxWorkerIterations; i++ {
		resp, err := provider.Send(ctx, history, declarations)
		if err != nil {
			return "", err
		}

		if resp.Text != "" {
			lastText = resp.Text
		}
		if len(resp.FunctionCalls) == 0 {
			return resp.Text, nil
		}

		history = append(history, &genai.Content{Role: genai.RoleModel, Parts: resp.Parts})

		var resultParts []*genai.Part
		for _, call := range resp.FunctionCalls {
			result := executeCall(ctx, registry, call)
			resultParts = append(resultParts, genai.NewPartFromFunctionResponse(call.Name, result.ToMap()))
		}
		history = append(history, &genai.Content{Role: genai.RoleUser, Parts: resultParts})
	}

	if lastText != "" {
		return lastText, nil
	}
	return "", fmt.Errorf("no report produced after %d iterations", maxWorkerIterations)
}

// executeCall runs one tool call, converting every failure into a
// failed result the model can react to.
func executeCall(ctx context.Context, registry *tools.Registry, call *genai.FunctionCall) tools.ToolResult {
	tool, err := registry.Get(call.Name)
	if err != nil {
		return tools.NewErrorResult(err.Error())
	}
	if err := tool.Validate(call.Args); err != nil {
		return tools.NewErrorResult(err.Error())
	}
	result, err := tool.Execute(ctx, call.Args)
	if err != nil {
		return tools.NewErrorResult(err.Error())
	}
	return result
}
