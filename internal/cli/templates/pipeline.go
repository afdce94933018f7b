package templates

func init() {
	register(&Template{
		Name:        "pipeline",
		Description: "Sequential crew with a chained task DAG",
		Files: []File{
			{Path: "gogrid.yaml", Content: pipelineConfig},
			{Path: "main.go", Content: pipelineMain},
			{Path: "Makefile", Content: pipelineMakefile},
			{Path: "README.md", Content: pipelineReadme},
		},
	})
}

const pipelineConfig = `version: "1"
agents:
  drafter:
    model: gpt-4o-mini
    provider: openai
    instructions: |
      You are a content drafter. Write a first draft based on the topic.
      Be thorough but don't worry about polish.
    config:
      max_turns: 5
      max_tokens: 4096
      timeout: 60s
  editor:
    model: gpt-4o-mini
    provider: openai
    instructions: |
      You are an editor. Improve the draft for clarity, grammar,
      and structure. Return the polished version.
    config:
      max_turns: 5
      max_tokens: 4096
      timeout: 60s
`

const pipelineMain = `package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/lonestarx1/orcgrid/pkg/agent"
	"github.com/lonestarx1/orcgrid/pkg/crew"
	"github.com/lonestarx1/orcgrid/pkg/llm/openai"
)

func main() {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		log.Fatal("OPENAI_API_KEY is required")
	}

	provider := openai.New(apiKey)

	drafter := agent.New("drafter",
		agent.WithModel("gpt-4o-mini"),
		agent.WithProvider(provider),
		agent.WithInstructions("Write a first draft on the given topic."),
	)

	editor := agent.New("editor",
		agent.WithModel("gpt-4o-mini"),
		agent.WithProvider(provider),
		agent.WithInstructions("Polish the draft for clarity and grammar."),
	)

	c := crew.New(crew.Config{
		Name:          "content-pipeline",
		Process:       crew.Sequential,
		RequiredRoles: map[crew.Role]int{crew.Executor: 2},
	})

	if err := c.AddMember(crew.Member{AgentID: "drafter", Name: "drafter", Role: crew.Executor, Agent: drafter}); err != nil {
		log.Fatal(err)
	}
	if err := c.AddMember(crew.Member{AgentID: "editor", Name: "editor", Role: crew.Executor, Agent: editor}); err != nil {
		log.Fatal(err)
	}

	draft := &crew.Task{ID: "draft", Title: "draft", Description: "Write a blog post about Go concurrency patterns"}
	edit := &crew.Task{ID: "edit", Title: "edit", Description: "Polish the draft for clarity and grammar", DependsOn: []string{"draft"}}

	if err := c.AssignTask(draft, "drafter", ""); err != nil {
		log.Fatal(err)
	}
	if err := c.AssignTask(edit, "editor", ""); err != nil {
		log.Fatal(err)
	}

	result, err := c.ExecuteWorkflow(context.Background())
	if err != nil {
		log.Fatal(err)
	}

	for _, t := range result.Tasks {
		fmt.Printf("[%s] %s: %s\n", t.Status, t.ID, t.Result)
	}
	fmt.Printf("\nCompleted: %d | Failed: %d\n", result.Completed, result.Failed)
}
`

const pipelineMakefile = `.PHONY: build run clean

build:
	go build -o bin/{{.Name}} .

run: build
	./bin/{{.Name}}

clean:
	rm -rf bin/
`

const pipelineReadme = `# {{.Name}}

A GoGrid crew project with two sequential, dependency-chained stages.

## Setup

` + "```" + `bash
go mod tidy
export OPENAI_API_KEY=sk-...
` + "```" + `

## Run

` + "```" + `bash
# Using GoGrid CLI (runs individual agents)
gogrid run drafter -input "Go concurrency patterns"

# Or run the full pipeline directly
go run main.go
` + "```" + `
`
