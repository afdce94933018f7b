package crew

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lonestarx1/orcgrid/internal/id"
	"github.com/lonestarx1/orcgrid/pkg/agent"
	"github.com/lonestarx1/orcgrid/pkg/pool"
	"github.com/lonestarx1/orcgrid/pkg/vote"
)

// errSequentialAbort signals that executeSequential stopped early on a
// task whose RetryOnFailure is false. It is not a real failure —
// ExecuteWorkflow treats it as a clean stop and reports it via
// Result.Aborted instead of returning an error.
var errSequentialAbort = errors.New("crew: sequential process aborted by a failed task")

// Result summarizes one ExecuteWorkflow run.
type Result struct {
	RunID     string
	Process   ProcessMode
	Tasks     []*Task
	Completed int
	Failed    int
	// Aborted is true when a Sequential run stopped early because a
	// task whose RetryOnFailure is false failed; the remaining tasks
	// are left Skipped rather than run.
	Aborted bool
}

// ExecuteWorkflow runs every assigned task to completion under the
// crew's configured process mode.
func (c *Crew) ExecuteWorkflow(ctx context.Context) (*Result, error) {
	c.mu.Lock()
	if c.state != Ready && c.state != Paused {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: state is %s", ErrCrewNotReady, c.state)
	}
	c.state = Working
	c.mu.Unlock()

	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	ctx, runSpan := c.tracer.StartSpan(ctx, "crew.run")
	runSpan.SetAttribute("crew.id", c.crewID)
	runSpan.SetAttribute("crew.process", string(c.config.Process))
	defer c.tracer.EndSpan(runSpan)

	var err error
	switch c.config.Process {
	case Parallel:
		err = c.executeParallel(ctx)
	case Hierarchical:
		err = c.executeHierarchical(ctx)
	case DemocraticConsensus:
		err = c.executeDemocraticConsensus(ctx)
	default:
		err = c.executeSequential(ctx)
	}

	aborted := errors.Is(err, errSequentialAbort)
	if aborted {
		err = nil
	}

	c.mu.Lock()
	tasks := make([]*Task, len(c.taskOrder))
	completed, failed := 0, 0
	for i, tid := range c.taskOrder {
		t := c.tasks[tid]
		tasks[i] = t
		switch t.Status {
		case TaskDone:
			completed++
		case Failed:
			failed++
		}
	}
	if err != nil {
		c.state = Paused
	} else {
		c.state = Completed
	}
	c.mu.Unlock()

	if err != nil {
		runSpan.SetError(err)
		return nil, err
	}

	c.logEvent("workflow_completed", map[string]any{"completed": completed, "failed": failed})

	return &Result{
		RunID:     id.New(),
		Process:   c.config.Process,
		Tasks:     tasks,
		Completed: completed,
		Failed:    failed,
		Aborted:   aborted,
	}, nil
}

// executeSequential runs tasks one at a time in assignment order,
// feeding no output forward — each task is independent work handed to
// its assignee. A task that fails with RetryOnFailure false aborts the
// remainder: every task after it in taskOrder is left Skipped and the
// run reports errSequentialAbort, which ExecuteWorkflow turns into
// Result.Aborted rather than a real error.
func (c *Crew) executeSequential(ctx context.Context) error {
	order := c.taskOrderSnapshot()
	for i, tid := range order {
		if err := ctx.Err(); err != nil {
			return err
		}
		task := c.taskSnapshot(tid)
		if err := c.runTask(ctx, task); err != nil {
			return err
		}
		if task.Status == Failed && !task.RetryOnFailure {
			c.skipTasks(order[i+1:])
			return errSequentialAbort
		}
	}
	return nil
}

// skipTasks marks every task in ids Skipped, leaving already-completed
// or already-failed tasks untouched.
func (c *Crew) skipTasks(ids []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, tid := range ids {
		if t, ok := c.tasks[tid]; ok && t.Status != TaskDone && t.Status != Failed {
			t.Status = Skipped
		}
	}
}

// executeParallel groups tasks into dependency levels (Kahn's
// algorithm over Task.DependsOn) and runs every task in a level
// concurrently via errgroup, advancing to the next level only once the
// current one finishes.
func (c *Crew) executeParallel(ctx context.Context) error {
	levels, err := c.computeLevels()
	if err != nil {
		return err
	}

	for _, level := range levels {
		if err := ctx.Err(); err != nil {
			return err
		}
		g, gctx := errgroup.WithContext(ctx)
		for _, tid := range level {
			tid := tid
			g.Go(func() error {
				task := c.taskSnapshot(tid)
				return c.runTask(gctx, task)
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
	return nil
}

// computeLevels orders taskOrder's tasks into dependency waves: level
// 0 holds every task with no unresolved dependency, level 1 holds
// tasks whose dependencies are all in level 0, and so on. Returns
// ErrTaskDependencyUnsatisfied if a task names a dependency that was
// never assigned to the crew, and ErrCircularDependency if a cycle
// among known tasks prevents full ordering.
func (c *Crew) computeLevels() ([][]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	remaining := make(map[string][]string, len(c.taskOrder))
	for _, tid := range c.taskOrder {
		deps := c.tasks[tid].DependsOn
		for _, d := range deps {
			if _, ok := c.tasks[d]; !ok {
				return nil, fmt.Errorf("%w: %s depends on %s", ErrTaskDependencyUnsatisfied, tid, d)
			}
		}
		remaining[tid] = append([]string(nil), deps...)
	}

	var levels [][]string
	resolved := make(map[string]bool, len(remaining))
	for len(remaining) > 0 {
		var level []string
		for tid, deps := range remaining {
			ready := true
			for _, d := range deps {
				if !resolved[d] {
					ready = false
					break
				}
			}
			if ready {
				level = append(level, tid)
			}
		}
		if len(level) == 0 {
			return nil, ErrCircularDependency
		}
		for _, tid := range level {
			delete(remaining, tid)
			resolved[tid] = true
		}
		levels = append(levels, level)
	}
	return levels, nil
}

// executeHierarchical auto-assigns any unassigned task to the first
// available Specialist, falling back to the first available Executor,
// runs the resulting task set under the same dependency-level Parallel
// semantics as executeParallel, and routes every completed task
// through the leader's review regardless of the RequireReview setting.
// A crew with no leader falls back to executeSequential with a
// metrics warning rather than aborting the run.
func (c *Crew) executeHierarchical(ctx context.Context) error {
	leader := c.Leader()
	if leader == nil {
		c.logEvent("hierarchical_fallback", map[string]any{"reason": "no leader assigned"})
		return c.executeSequential(ctx)
	}

	c.mu.Lock()
	for _, tid := range c.taskOrder {
		task := c.tasks[tid]
		if task.AssignedTo != "" {
			continue
		}
		candidates := append(append([]string(nil), c.membersByRole[Specialist]...), c.membersByRole[Executor]...)
		agentID := c.firstAvailableLocked(candidates)
		if agentID == "" {
			continue
		}
		task.AssignedTo = agentID
		task.AssignedRole = c.members[agentID].Role
	}
	c.mu.Unlock()

	if err := c.executeParallel(ctx); err != nil {
		return err
	}

	for _, tid := range c.taskOrderSnapshot() {
		task := c.taskSnapshot(tid)
		if task.Status == TaskDone {
			c.reviewTask(ctx, task, leader)
		}
	}
	return nil
}

// executeDemocraticConsensus runs every task directly via its assignee
// except where Task.RequiresVote is true: there, it opens a
// pkg/consensus.Session over every crew member, has each member cast
// an approve/reject ballot on whether the task should run, and only
// runs the task if the session's tally passes. A task whose vote
// fails is left Skipped rather than executed.
func (c *Crew) executeDemocraticConsensus(ctx context.Context) error {
	if !c.config.VotingEnabled {
		return ErrVotingDisabled
	}

	c.mu.Lock()
	members := make([]*Member, 0, len(c.members))
	for _, m := range c.members {
		members = append(members, m)
	}
	c.mu.Unlock()
	if len(members) == 0 {
		return errors.New("crew: no members to vote")
	}

	for _, tid := range c.taskOrderSnapshot() {
		if err := ctx.Err(); err != nil {
			return err
		}
		task := c.taskSnapshot(tid)

		if !task.RequiresVote {
			if err := c.runTask(ctx, task); err != nil {
				return err
			}
			continue
		}

		passed, err := c.voteOnTask(ctx, task, members)
		if err != nil {
			return err
		}
		if !passed {
			c.markTask(task.ID, Skipped, "", 0)
			continue
		}
		if err := c.runTask(ctx, task); err != nil {
			return err
		}
	}
	return nil
}

// voteOnTask opens a proposal and voting session over whether task
// should run, polls each member for an approve/reject ballot, and
// tallies the result through the crew's consensus Builder.
func (c *Crew) voteOnTask(ctx context.Context, task *Task, members []*Member) (bool, error) {
	proposal := c.consensus.NewProposal(c.crewID, task.Title, task.Description, []string{"approve", "reject"})
	session, err := c.consensus.StartVoting(proposal.ID, c.config.VotingStrategy)
	if err != nil {
		return false, err
	}

	type ballot struct {
		v   vote.Vote
		err error
	}
	results := make(chan ballot, len(members))
	prompt := fmt.Sprintf("vote approve or reject on whether to execute the task %q:\n\n%s", task.Title, task.Description)
	for _, m := range members {
		m := m
		go func() {
			out, err := m.Agent.ExecuteTask(ctx, agent.TaskInput{ID: task.ID + ":vote", Description: prompt})
			if err != nil || out.Status != agent.TaskCompleted {
				results <- ballot{err: err}
				return
			}
			choice := "reject"
			if out.QualityScore >= c.config.QualityThreshold {
				choice = "approve"
			}
			results <- ballot{v: vote.Vote{VoterID: m.AgentID, Choice: choice, Confidence: out.QualityScore, Weight: 1}}
		}()
	}
	for range members {
		r := <-results
		if r.err != nil {
			continue
		}
		if err := session.Record(r.v); err != nil {
			return false, err
		}
	}

	result, err := c.consensus.CloseSession(session.ID, vote.Config{Strategy: c.config.VotingStrategy}, len(members))
	if err != nil {
		return false, err
	}

	passed := result.HasWinner && result.Winner == "approve" && result.Consensus
	c.logEvent("vote_conducted", map[string]any{"task_id": task.ID, "consensus": result.Consensus, "winner": result.Winner, "passed": passed})
	if c.log != nil {
		c.log.RecordCrewVote(c.crewID, result.Consensus)
	}
	return passed, nil
}

// runTask dispatches a single task to its assigned member, retrying up
// to config.MaxRetries times, wrapping the call in a pool reservation
// when a pool is attached, and running it through review when the
// crew or the task itself requires one.
func (c *Crew) runTask(ctx context.Context, task *Task) error {
	if task.AssignedTo == "" {
		return fmt.Errorf("crew: task %q has no assignee", task.ID)
	}

	c.mu.Lock()
	member, ok := c.members[task.AssignedTo]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrMemberNotPresent, task.AssignedTo)
	}

	c.setTaskStatus(task.ID, InProgress)

	start := time.Now()
	ctx, taskSpan := c.tracer.StartSpan(ctx, "crew.task")
	taskSpan.SetAttribute("crew.task.id", task.ID)
	taskSpan.SetAttribute("crew.task.agent_id", member.AgentID)
	defer c.tracer.EndSpan(taskSpan)

	maxAttempts := c.config.MaxRetries + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var outcome agent.TaskOutcome
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		taskSpan.SetAttribute("crew.task.attempt", fmt.Sprintf("%d", attempt))

		var tok pool.Token
		var entry *pool.Entry
		var reserved bool
		if c.pool != nil {
			t, err := c.pool.Reserve(member.AgentID, task.ID, pool.NonBlocking)
			if err != nil {
				lastErr = err
				continue
			}
			tok = t
			reserved = true
			entry, _ = c.pool.Lookup(member.AgentID)
		}

		outcome, lastErr = member.Agent.ExecuteTask(ctx, agent.TaskInput{
			ID:          task.ID,
			Description: task.Description,
		})

		if lastErr == nil && outcome.Status != agent.TaskCompleted {
			lastErr = fmt.Errorf("crew: task %q: agent reported status %q", task.ID, outcome.Status)
		}

		if entry != nil {
			if lastErr != nil {
				entry.RecordFailure()
			} else {
				entry.RecordSuccess()
			}
		}
		if reserved {
			_ = c.pool.Release(tok)
		}

		if lastErr == nil {
			break
		}
	}

	d := time.Since(start)
	if c.log != nil {
		c.log.RecordCrewTask(c.crewID, lastErr == nil, d)
	}

	if lastErr != nil {
		wrapped := fmt.Errorf("%w: %s: %v", ErrAgentCallbackFailed, task.ID, lastErr)
		taskSpan.SetError(wrapped)
		c.markTask(task.ID, Failed, "", 0)
		c.logEvent("task_failed", map[string]any{"task_id": task.ID, "error": wrapped.Error()})
		return nil
	}

	c.markTask(task.ID, TaskDone, outcome.Payload, outcome.QualityScore)
	member.mu.Lock()
	member.TasksCompleted++
	member.QualityScore = outcome.QualityScore
	member.mu.Unlock()

	c.logEvent("task_completed", map[string]any{"task_id": task.ID, "agent_id": member.AgentID, "quality": outcome.QualityScore})

	if c.config.RequireReview || task.RequiresReview {
		reviewers := c.MembersByRole(Reviewer)
		if len(reviewers) > 0 {
			c.reviewTask(ctx, task, reviewers[0])
		}
	}

	return nil
}

// reviewTask asks reviewer to pass judgment on task's result, using
// the reviewer's own ExecuteTask contract: a reviewer whose reported
// quality score clears the crew's QualityThreshold approves, otherwise
// the task is marked failed pending resubmission.
func (c *Crew) reviewTask(ctx context.Context, task *Task, reviewer *Member) {
	prompt := fmt.Sprintf("review the following result against the task %q and report your confidence in it:\n\n%s", task.Description, task.Result)
	outcome, err := reviewer.Agent.ExecuteTask(ctx, agent.TaskInput{ID: task.ID + ":review", Description: prompt})

	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tasks[task.ID]
	if !ok {
		return
	}
	t.ReviewedBy = reviewer.AgentID
	approved := err == nil && outcome.Status == agent.TaskCompleted && outcome.QualityScore >= c.config.QualityThreshold
	t.ReviewApproved = &approved
	t.ReviewFeedback = outcome.Payload
	if !approved {
		t.Status = Failed
	}

	c.logEvent("task_reviewed", map[string]any{"task_id": task.ID, "reviewer_id": reviewer.AgentID, "approved": approved})
}

func (c *Crew) setTaskStatus(taskID string, status TaskStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.tasks[taskID]; ok {
		t.Status = status
	}
}

func (c *Crew) markTask(taskID string, status TaskStatus, result string, quality float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tasks[taskID]
	if !ok {
		return
	}
	t.Status = status
	if result != "" {
		t.Result = result
	}
	t.QualityScore = quality
}

func (c *Crew) taskOrderSnapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.taskOrder...)
}

func (c *Crew) taskSnapshot(taskID string) *Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tasks[taskID]
}
