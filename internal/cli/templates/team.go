package templates

func init() {
	register(&Template{
		Name:        "team",
		Description: "Crew of role-structured agents sharing a task",
		Files: []File{
			{Path: "gogrid.yaml", Content: teamConfig},
			{Path: "main.go", Content: teamMain},
			{Path: "Makefile", Content: teamMakefile},
			{Path: "README.md", Content: teamReadme},
		},
	})
}

const teamConfig = `version: "1"
agents:
  researcher:
    model: gpt-4o-mini
    provider: openai
    instructions: |
      You are a researcher. Analyze the topic thoroughly and provide
      detailed findings with sources.
    config:
      max_turns: 5
      max_tokens: 4096
      timeout: 60s
  reviewer:
    model: gpt-4o-mini
    provider: openai
    instructions: |
      You are a critical reviewer. Evaluate the research for accuracy,
      completeness, and potential biases.
    config:
      max_turns: 5
      max_tokens: 4096
      timeout: 60s
`

const teamMain = `package main

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

	researcher := agent.New("researcher",
		agent.WithModel("gpt-4o-mini"),
		agent.WithProvider(provider),
		agent.WithInstructions("You are a researcher. Provide detailed analysis."),
	)

	reviewer := agent.New("reviewer",
		agent.WithModel("gpt-4o-mini"),
		agent.WithProvider(provider),
		agent.WithInstructions("You are a reviewer. Evaluate for accuracy and gaps."),
	)

	c := crew.New(crew.Config{
		Name:          "research-crew",
		Process:       crew.Sequential,
		RequiredRoles: map[crew.Role]int{crew.Specialist: 1, crew.Reviewer: 1},
	})

	if err := c.AddMember(crew.Member{AgentID: "researcher", Name: "researcher", Role: crew.Specialist, Agent: researcher}); err != nil {
		log.Fatal(err)
	}
	if err := c.AddMember(crew.Member{AgentID: "reviewer", Name: "reviewer", Role: crew.Reviewer, Agent: reviewer}); err != nil {
		log.Fatal(err)
	}

	research := &crew.Task{ID: "research", Title: "research", Description: "Analyze the impact of AI on software development"}
	review := &crew.Task{ID: "review", Title: "review", Description: "Review the research findings", DependsOn: []string{"research"}}

	if err := c.AssignTask(research, "", crew.Specialist); err != nil {
		log.Fatal(err)
	}
	if err := c.AssignTask(review, "", crew.Reviewer); err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	result, err := c.ExecuteWorkflow(ctx)
	if err != nil {
		log.Fatal(err)
	}

	for _, t := range result.Tasks {
		fmt.Printf("[%s] %s: %s\n", t.Status, t.ID, t.Result)
	}
	fmt.Printf("\nCompleted: %d | Failed: %d\n", result.Completed, result.Failed)
}
`

const teamMakefile = `.PHONY: build run clean

build:
	go build -o bin/{{.Name}} .

run: build
	./bin/{{.Name}}

clean:
	rm -rf bin/
`

const teamReadme = `# {{.Name}}

A GoGrid crew project: a researcher and a reviewer working a two-task
sequential workflow.

## Setup

` + "```" + `bash
go mod tidy
export OPENAI_API_KEY=sk-...
` + "```" + `

## Run

` + "```" + `bash
# Using GoGrid CLI (runs individual agents)
gogrid run researcher -input "Analyze AI impact"

# Or run the crew workflow directly
go run main.go
` + "```" + `
`
