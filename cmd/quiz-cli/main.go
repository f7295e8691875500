package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/stemsi/mcqprep-backend/internal/config"
	"github.com/stemsi/mcqprep-backend/internal/logger"
	"github.com/stemsi/mcqprep-backend/internal/model"
	"github.com/stemsi/mcqprep-backend/internal/quiz"
	"github.com/stemsi/mcqprep-backend/internal/repository"
	"github.com/stemsi/mcqprep-backend/internal/service"
	"golang.org/x/term"
)

const usage = `commands:
  a..d      answer the current question
  <enter>   next question, or submit on the last one
  n         next question
  g <n>     go to question n
  s         submit now
  q         quit without submitting`

// quiz-cli plays one practice session in the terminal against the YAML
// question file.
//
// Usage: quiz-cli <subject> <year> <board>
func main() {
	cfg := config.Load()
	level := cfg.LogLevel
	if level != "debug" && level != "trace" {
		level = "warn"
	}
	log := logger.SetupWriter(level, "pretty", os.Stderr)

	fileRepo, err := repository.NewQuestionFileRepository(cfg.QuestionsFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", cfg.QuestionsFile).Msg("Failed to load question file")
	}
	questionService := service.NewQuestionService(fileRepo, nil, log)

	ctx := context.Background()

	if len(os.Args) != 4 {
		printCatalog(ctx, questionService)
		fmt.Println("\nusage: quiz-cli <subject> <year> <board>")
		os.Exit(2)
	}
	key := model.SelectionKey{Subject: os.Args[1], Year: os.Args[2], Board: os.Args[3]}

	outcomes := make(chan quiz.Outcome, 1)
	ticks := make(chan quiz.State, 1)
	ctrl := quiz.NewController(questionService, quiz.Config{
		Duration:    cfg.QuizDuration,
		SubmitDelay: cfg.SubmitDelay,
		Log:         log,
		Observer: func(ev quiz.Event) {
			switch ev.Kind {
			case quiz.EventTick:
				// A missed tick is fine, the next one carries the newer clock.
				select {
				case ticks <- ev.State:
				default:
				}
			case quiz.EventSubmitted:
				if ev.State.Trigger == quiz.TriggerTimeout {
					fmt.Println("\nTime is up! Submitting your answers...")
				}
			case quiz.EventDelivered:
				if ev.Result != nil {
					outcomes <- quiz.Outcome{
						Result:  *ev.Result,
						Score:   quiz.Grade(*ev.Result, cfg.PassThreshold),
						Trigger: ev.State.Trigger,
					}
				}
			}
		},
	})
	defer ctrl.Close()

	status, err := ctrl.Load(ctx, key)
	if status != quiz.StatusReady {
		if err != nil {
			log.Debug().Err(err).Msg("Load failed")
		}
		fmt.Println(quiz.StatusMessage(status))
		os.Exit(1)
	}

	fmt.Println(usage)

	lines := make(chan string)
	go readLines(lines)

	live := term.IsTerminal(int(os.Stdout.Fd()))
	render(ctrl.State())
	for {
		select {
		case st := <-ticks:
			if live && !st.Submitted {
				fmt.Print("\r\033[K" + prompt(quiz.Project(st)))
			}
		case outcome := <-outcomes:
			printOutcome(outcome)
			return
		case line, ok := <-lines:
			if !ok || line == "q" {
				fmt.Println("Session abandoned.")
				return
			}
			if err := run(ctrl, line); err != nil {
				fmt.Println("!", describe(err))
			}
			if st := ctrl.State(); !st.Submitted {
				render(st)
			} else {
				fmt.Println("Submitting...")
			}
		}
	}
}

// run applies one command line to ctrl.
func run(ctrl *quiz.Controller, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		_, err := ctrl.Advance()
		return err
	}

	switch cmd := strings.ToLower(fields[0]); {
	case cmd == "n":
		_, err := ctrl.Next()
		return err
	case cmd == "s":
		if !ctrl.Submit(quiz.TriggerManual) {
			if ctrl.State().Submitted {
				return quiz.ErrAlreadySubmitted
			}
			return quiz.ErrNotReady
		}
		return nil
	case cmd == "g":
		if len(fields) < 2 {
			return fmt.Errorf("usage: g <question number>")
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil {
			return fmt.Errorf("not a number: %s", fields[1])
		}
		return ctrl.GoTo(n - 1)
	case len(cmd) == 1 && cmd[0] >= 'a' && cmd[0] <= 'z':
		q := ctrl.State().Current()
		if q == nil {
			return quiz.ErrNotReady
		}
		i := int(cmd[0] - 'a')
		if i >= len(q.Options) {
			return quiz.ErrUnknownOption
		}
		changed, err := ctrl.SelectAnswer(q.Options[i])
		if err == nil && !changed {
			return fmt.Errorf("this question is already answered")
		}
		return err
	default:
		return fmt.Errorf("unknown command %q\n%s", line, usage)
	}
}

func describe(err error) string {
	switch err {
	case quiz.ErrIndexOutOfRange:
		return "no such question"
	case quiz.ErrUnknownOption:
		return "no such option"
	case quiz.ErrAlreadySubmitted:
		return "already submitted"
	case quiz.ErrNotReady:
		return "no questions loaded"
	default:
		return err.Error()
	}
}

func readLines(out chan<- string) {
	defer close(out)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		out <- strings.TrimSpace(scanner.Text())
	}
}

// width is the terminal width, or 60 when stdout is not a terminal.
func width() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return 60
	}
	w, _, err := term.GetSize(fd)
	if err != nil || w <= 0 {
		return 60
	}
	if w > 100 {
		w = 100
	}
	return w
}

func render(s quiz.State) {
	v := quiz.Project(s)
	rule := strings.Repeat("─", width())

	fmt.Println(rule)
	fmt.Printf("%s %s\n", v.Title, v.Subtitle)
	fmt.Println(v.Progress)

	var strip strings.Builder
	for _, b := range v.Buttons {
		switch b.State {
		case quiz.ButtonCurrent:
			fmt.Fprintf(&strip, "[%s] ", b.Label)
		case quiz.ButtonAnswered:
			fmt.Fprintf(&strip, "*%s ", b.Label)
		default:
			fmt.Fprintf(&strip, " %s ", b.Label)
		}
	}
	fmt.Println(strip.String())
	fmt.Println(rule)

	if v.Question != nil {
		fmt.Println(v.Question.Text)
		if v.Question.ImageRef != nil {
			fmt.Printf("(image: %s)\n", *v.Question.ImageRef)
		}
	}
	for _, o := range v.Options {
		mark := " "
		if o.Selected {
			mark = ">"
		}
		fmt.Printf(" %s %s) %s\n", mark, strings.ToLower(o.Letter), o.Value)
	}

	fmt.Print(prompt(v))
}

// prompt is the input line, redrawn in place as the clock runs.
func prompt(v quiz.View) string {
	action := "next"
	if v.PrimaryAction == quiz.ActionSubmit {
		action = "submit"
	}
	return fmt.Sprintf("%s [enter = %s] > ", v.Clock, action)
}

func printOutcome(o quiz.Outcome) {
	s := o.Score
	rule := strings.Repeat("─", width())

	fmt.Println(rule)
	fmt.Printf("Score: %d / %d (%.2f%%)\n", s.CorrectCount, s.TotalQuestions, s.Percentage)
	fmt.Println(s.Message)
	fmt.Println(rule)

	for _, item := range s.Review {
		verdict := "wrong"
		switch {
		case !item.Answered:
			verdict = "not answered"
		case item.Correct:
			verdict = "correct"
		}
		fmt.Printf("%2d. %s\n    your answer: %s (%s)\n", item.Index+1, item.Question, orDash(item.UserAnswer), verdict)
		if !item.Correct {
			fmt.Printf("    correct answer: %s\n", item.CorrectOption)
		}
	}
}

func printCatalog(ctx context.Context, qs *service.QuestionService) {
	catalog, err := qs.Catalog(ctx)
	if err != nil || len(catalog) == 0 {
		fmt.Println("No question sets available.")
		return
	}
	fmt.Println("Available question sets:")
	for _, subj := range catalog {
		for _, y := range subj.Years {
			for _, b := range y.Boards {
				fmt.Printf("  %s %s %s\n", subj.Subject, y.Year, b)
			}
		}
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
