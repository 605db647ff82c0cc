package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dmitrijs2005/taskkeeper/internal/client/models"
	"github.com/dmitrijs2005/taskkeeper/internal/common"
)

func (a *App) AddTask(ctx context.Context) error {
	title, err := getSimpleText(a.reader, "Title", a.out)
	if err != nil {
		return err
	}
	description, err := GetMultiline(a.reader, "Description (optional)", a.out)
	if err != nil {
		return err
	}
	rawPriority, err := getSimpleText(a.reader, "Priority: low, medium, high (empty for medium)", a.out)
	if err != nil {
		return err
	}
	priority, err := models.ParsePriority(rawPriority)
	if err != nil {
		return err
	}
	due, err := getSimpleText(a.reader, "Due date YYYY-MM-DD (optional)", a.out)
	if err != nil {
		return err
	}

	t, err := a.tasks.Create(ctx, models.TaskInput{
		Title:       title,
		Description: description,
		Priority:    priority,
		DueDate:     due,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Added %s\n", t.ID)
	return nil
}

func (a *App) printTasks(tasks []models.Task) {
	if len(tasks) == 0 {
		fmt.Fprintln(a.out, "No tasks.")
		return
	}
	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDONE\tPRIORITY\tDUE\tTITLE")
	for _, t := range tasks {
		done := " "
		if t.Completed {
			done = "x"
		}
		fmt.Fprintf(w, "%s\t[%s]\t%s\t%s\t%s\n", t.ID, done, t.Priority, t.DueDate, t.Title)
	}
	_ = w.Flush()
}

func (a *App) List(ctx context.Context) error {
	tasks, err := a.tasks.Load(ctx)
	if err != nil {
		return err
	}
	a.printTasks(tasks)

	st := models.Summarize(tasks)
	fmt.Fprintf(a.out, "%d total, %d pending, %d completed\n", st.Total, st.Pending, st.Completed)
	return nil
}

func (a *App) Pending(ctx context.Context) error {
	tasks, err := a.tasks.ListPending(ctx)
	if err != nil {
		return err
	}
	a.printTasks(tasks)
	return nil
}

func (a *App) Completed(ctx context.Context) error {
	tasks, err := a.tasks.ListCompleted(ctx)
	if err != nil {
		return err
	}
	a.printTasks(tasks)
	return nil
}

func taskID(args []string) (string, error) {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return "", common.NewFieldError("id", "missing task id")
	}
	return args[0], nil
}

// Done flips the completion flag of a task.
func (a *App) Done(ctx context.Context, args []string) error {
	id, err := taskID(args)
	if err != nil {
		return err
	}
	t, err := a.tasks.ToggleComplete(ctx, id)
	if err != nil {
		return err
	}
	state := "pending"
	if t.Completed {
		state = "completed"
	}
	fmt.Fprintf(a.out, "%s is now %s\n", t.Title, state)
	return nil
}

// Edit prompts for each field; an empty answer keeps the current value.
func (a *App) Edit(ctx context.Context, args []string) error {
	id, err := taskID(args)
	if err != nil {
		return err
	}
	cur, err := a.tasks.Get(ctx, id)
	if err != nil {
		return err
	}

	var patch models.TaskPatch

	title, err := getSimpleText(a.reader, fmt.Sprintf("Title [%s]", cur.Title), a.out)
	if err != nil {
		return err
	}
	if title != "" {
		patch.Title = &title
	}

	description, err := getSimpleText(a.reader, "Description (empty keeps, '-' clears)", a.out)
	if err != nil {
		return err
	}
	switch description {
	case "":
	case "-":
		empty := ""
		patch.Description = &empty
	default:
		patch.Description = &description
	}

	rawPriority, err := getSimpleText(a.reader, fmt.Sprintf("Priority [%s]", cur.Priority), a.out)
	if err != nil {
		return err
	}
	if rawPriority != "" {
		p, err := models.ParsePriority(rawPriority)
		if err != nil {
			return err
		}
		patch.Priority = &p
	}

	due, err := getSimpleText(a.reader, fmt.Sprintf("Due date [%s] ('-' clears)", cur.DueDate), a.out)
	if err != nil {
		return err
	}
	switch due {
	case "":
	case "-":
		empty := ""
		patch.DueDate = &empty
	default:
		patch.DueDate = &due
	}

	if patch.Empty() {
		fmt.Fprintln(a.out, "Nothing changed.")
		return nil
	}
	if _, err := a.tasks.Update(ctx, id, patch); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Updated.")
	return nil
}

func (a *App) Remove(ctx context.Context, args []string) error {
	id, err := taskID(args)
	if err != nil {
		return err
	}
	if err := a.tasks.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Deleted.")
	return nil
}

func (a *App) ClearCompleted(ctx context.Context) error {
	n, err := a.tasks.ClearCompleted(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Removed %d completed task(s).\n", n)
	return nil
}
