package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"

	"codecollab/internal/collab"
	"codecollab/internal/config"
	"codecollab/internal/model"
	"codecollab/internal/pkg/logger"
	"codecollab/internal/session"
	"codecollab/internal/transport"
)

const exportDir = "exported"

var (
	aiStyle       = color.New(color.FgMagenta, color.Bold)
	outgoingStyle = color.New(color.FgBlue)
	peerStyle     = color.New(color.FgWhite)
	noticeStyle   = color.New(color.FgYellow)
	errorStyle    = color.New(color.FgRed)
)

func main() {
	cfg := config.Load()
	if cfg.Session.ProjectID == "" || cfg.Session.UserID == "" {
		log.Fatal("PROJECT_ID and USER_ID are required")
	}

	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	defer sysLogger.Sync()

	channel := transport.NewWebsocketChannel(transport.Options{
		Endpoint:          cfg.Session.Endpoint,
		AuthToken:         cfg.Session.AuthToken,
		ProjectID:         cfg.Session.ProjectID,
		UserID:            cfg.Session.UserID,
		ReconnectAttempts: cfg.Session.ReconnectAttempts,
		ReconnectDelay:    cfg.Session.ReconnectDelay,
	}, sysLogger)

	sess := session.New(cfg.Session, channel, sysLogger)
	sess.OnMessage(printMessage)
	sess.OnAIPending(func(pending bool) {
		if pending {
			noticeStyle.Println("… AI is responding")
		}
	})

	if err := sess.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start session: %v", err)
	}
	defer sess.Close()

	roster := collab.NewClient(cfg.API.BaseURL, cfg.Session.AuthToken, cfg.API.RosterTTL)

	noticeStyle.Println("Connected. Type @ai to generate code, /help for commands.")
	runLoop(cfg, sess, roster)
}

func printMessage(m model.Message) {
	stamp := m.Timestamp.Format("15:04")
	switch {
	case m.FromAI():
		aiStyle.Printf("[%s] AI Assistant: ", stamp)
		fmt.Println(m.Body)
	case m.Outgoing:
		outgoingStyle.Printf("[%s] you", stamp)
		if m.IsPrivate {
			outgoingStyle.Printf(" → %s", m.ReceiverID)
		}
		fmt.Printf(": %s\n", m.Body)
	default:
		name := m.SenderName
		if name == "" {
			name = m.SenderEmail
		}
		peerStyle.Printf("[%s] %s: ", stamp, name)
		fmt.Println(m.Body)
	}
}

func runLoop(cfg *config.Config, sess *session.Session, roster *collab.Client) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	target := ""
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "/") {
			if _, err := sess.SendMessage(line, target); err != nil {
				errorStyle.Printf("Not sent: %v\n", err)
			}
			continue
		}

		fields := strings.Fields(line)
		cmd, args := fields[0], fields[1:]
		switch cmd {
		case "/help":
			fmt.Println(`/files            list extracted files
/show <name>      select a file and print it
/save <name>      write a file to ./exported
/saveall          write every file to ./exported
/rm <name>        delete a file
/clear            delete all files
/to [userId]      set (or clear) the private-message target
/who              list project collaborators
/invite <id...>   add collaborators to the project
/quit             leave the project`)

		case "/files":
			store := sess.Store()
			names := store.Names()
			if len(names) == 0 {
				noticeStyle.Println("No files yet. Ask the AI to generate some.")
				continue
			}
			selected := store.Selected()
			for _, name := range names {
				marker := "  "
				if name == selected {
					marker = "* "
				}
				fmt.Println(marker + name)
			}

		case "/show":
			if len(args) != 1 {
				errorStyle.Println("Usage: /show <name>")
				continue
			}
			store := sess.Store()
			f, ok := store.Get(args[0])
			if !ok {
				errorStyle.Printf("No such file: %s\n", args[0])
				continue
			}
			store.Select(f.Name)
			noticeStyle.Printf("--- %s (%s) ---\n", f.Name, f.Language)
			fmt.Println(f.Content)

		case "/save":
			if len(args) != 1 {
				errorStyle.Println("Usage: /save <name>")
				continue
			}
			data, ok := sess.Store().Export(args[0])
			if !ok {
				errorStyle.Printf("No such file: %s\n", args[0])
				continue
			}
			if err := writeExport(args[0], data); err != nil {
				errorStyle.Printf("Save failed: %v\n", err)
				continue
			}
			noticeStyle.Printf("Saved %s\n", filepath.Join(exportDir, args[0]))

		case "/saveall":
			for _, f := range sess.Store().ExportAll() {
				if err := writeExport(f.Name, f.Data); err != nil {
					errorStyle.Printf("Save %s failed: %v\n", f.Name, err)
					continue
				}
				noticeStyle.Printf("Saved %s\n", filepath.Join(exportDir, f.Name))
			}

		case "/rm":
			if len(args) != 1 {
				errorStyle.Println("Usage: /rm <name>")
				continue
			}
			sess.Store().Delete(args[0])

		case "/clear":
			sess.Store().Clear()
			noticeStyle.Println("All files removed.")

		case "/to":
			if len(args) == 0 {
				target = ""
				noticeStyle.Println("Private target cleared; messages broadcast.")
				continue
			}
			target = args[0]
			noticeStyle.Printf("Messages now private to %s\n", target)

		case "/who":
			users, err := roster.Collaborators(context.Background(), cfg.Session.ProjectID)
			if err != nil {
				errorStyle.Printf("Roster unavailable: %v\n", err)
				continue
			}
			for _, u := range users {
				fmt.Printf("%s  %s <%s>\n", u.ID, u.Name, u.Email)
			}

		case "/invite":
			if len(args) == 0 {
				errorStyle.Println("Usage: /invite <userId> [userId...]")
				continue
			}
			project, err := roster.AddCollaborators(context.Background(), cfg.Session.ProjectID, args)
			if err != nil {
				errorStyle.Printf("Invite failed: %v\n", err)
				continue
			}
			noticeStyle.Printf("Project now has %d members\n", len(project.Users))

		case "/quit":
			return

		default:
			errorStyle.Printf("Unknown command %s (try /help)\n", cmd)
		}
	}
}

func writeExport(name string, data []byte) error {
	if err := os.MkdirAll(exportDir, 0o755); err != nil {
		return err
	}
	// Exports are raw stored bytes under the stored filename, no transformation.
	return os.WriteFile(filepath.Join(exportDir, filepath.Base(name)), data, 0o644)
}
