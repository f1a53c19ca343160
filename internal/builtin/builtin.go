// Package builtin provides the commands every deployment ships with.
package builtin

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/blockmindJS/blockmind/internal/command"
	"github.com/blockmindJS/blockmind/internal/db"
	"github.com/blockmindJS/blockmind/internal/outbox"
	"github.com/blockmindJS/blockmind/internal/permission"
	"github.com/blockmindJS/blockmind/internal/types"
)

// Queue is the part of the outbox the built-in commands use.
type Queue interface {
	SendAndAwaitReply(ctx context.Context, text string, patterns []*regexp.Regexp, timeout time.Duration) (*outbox.Reply, error)
	SetPace(name types.ChannelKind, pace time.Duration) error
}

// Commands lists registered commands. *command.Registry satisfies it.
type Commands interface {
	All() []*command.Entry
}

// Deps are the collaborators the built-in commands need.
type Deps struct {
	Commands     Commands
	Store        db.Store
	Queue        Queue
	Prefix       string
	ReplyTimeout time.Duration
}

// Builtin is a default spec paired with its handler.
type Builtin struct {
	Spec    command.Spec
	Handler command.Handler
}

// onlinePatterns match the answer to /list on vanilla and on the supported
// Russian networks. Group 1 is the player count.
var onlinePatterns = []*regexp.Regexp{
	regexp.MustCompile(`There are (\d+) (?:of a max(?: of)?|out of maximum) \d+ players online`),
	regexp.MustCompile(`(?i)игроков онлайн:?\s*(\d+)`),
	regexp.MustCompile(`(?i)сейчас на сервере:?\s*(\d+)`),
}

// All returns every built-in command with its default spec.
func All(deps Deps) []Builtin {
	chats := types.ChatKinds
	return []Builtin{
		{
			Spec:    command.Spec{Name: "help", Aliases: []string{"помощь", "commands"}, Description: "list the commands you can use", Channels: chats, Active: true},
			Handler: help(deps),
		},
		{
			Spec:    command.Spec{Name: "ping", Description: "check the bot is alive", Channels: chats, Active: true, Cooldown: 3 * time.Second},
			Handler: ping,
		},
		{
			Spec:    command.Spec{Name: "online", Aliases: []string{"онлайн"}, Description: "show how many players are online", Channels: chats, Active: true, Cooldown: 10 * time.Second},
			Handler: online(deps),
		},
		{
			Spec:    command.Spec{Name: "blacklist", Aliases: []string{"ban"}, Description: "stop a player from using commands", RequiredArgs: 1, Permission: "admin.blacklist", Channels: chats, Active: true},
			Handler: setBlacklist(deps, true),
		},
		{
			Spec:    command.Spec{Name: "unblacklist", Aliases: []string{"unban"}, Description: "let a player use commands again", RequiredArgs: 1, Permission: "admin.blacklist", Channels: chats, Active: true},
			Handler: setBlacklist(deps, false),
		},
		{
			Spec:    command.Spec{Name: "group", Description: "group add|remove <player> <group>", RequiredArgs: 3, Permission: "admin.groups", Channels: chats, Active: true},
			Handler: group(deps),
		},
		{
			Spec:    command.Spec{Name: "pace", Description: "pace <kind> <ms>", RequiredArgs: 2, Permission: "admin.pace", Channels: chats, Active: true},
			Handler: pace(deps),
		},
	}
}

// Handlers indexes the built-in handlers by command name.
func Handlers(deps Deps) map[string]command.Handler {
	all := All(deps)
	out := make(map[string]command.Handler, len(all))
	for _, b := range all {
		out[b.Spec.Name] = b.Handler
	}
	return out
}

// Register adds every built-in command to reg.
func Register(reg *command.Registry, deps Deps) error {
	for _, b := range All(deps) {
		if err := reg.Register(b.Spec, b.Handler); err != nil {
			return fmt.Errorf("registering %s: %w", b.Spec.Name, err)
		}
	}
	return nil
}

func help(deps Deps) command.Handler {
	return func(_ context.Context, call *command.Call) error {
		held := call.User.PermissionSet()
		var names []string
		for _, e := range deps.Commands.All() {
			spec := e.Spec
			if !spec.Active || !spec.AllowsChannel(call.Channel) || !permission.Has(held, spec.Permission) {
				continue
			}
			names = append(names, deps.Prefix+spec.Name)
		}
		if len(names) == 0 {
			call.Reply("Нет доступных команд")
			return nil
		}
		call.Reply("Команды: " + strings.Join(names, ", "))
		return nil
	}
}

func ping(_ context.Context, call *command.Call) error {
	call.Reply("pong")
	return nil
}

func online(deps Deps) command.Handler {
	return func(ctx context.Context, call *command.Call) error {
		reply, err := deps.Queue.SendAndAwaitReply(ctx, "/list", onlinePatterns, deps.ReplyTimeout)
		if errors.Is(err, outbox.ErrReplyTimeout) {
			return errors.New("сервер не ответил")
		}
		if err != nil {
			return err
		}
		call.Reply("Онлайн: " + reply.Match[1])
		return nil
	}
}

func setBlacklist(deps Deps, blacklisted bool) command.Handler {
	return func(ctx context.Context, call *command.Call) error {
		target := call.Arg(0)
		if strings.EqualFold(target, call.Username()) && blacklisted {
			return errors.New("нельзя заблокировать себя")
		}
		if err := deps.Store.SetBlacklist(ctx, target, blacklisted); err != nil {
			return err
		}
		if blacklisted {
			call.Reply(target + " заблокирован")
		} else {
			call.Reply(target + " разблокирован")
		}
		return nil
	}
}

func group(deps Deps) command.Handler {
	return func(ctx context.Context, call *command.Call) error {
		action, user, name := strings.ToLower(call.Arg(0)), call.Arg(1), call.Arg(2)
		switch action {
		case "add":
			if err := deps.Store.AddUserToGroup(ctx, user, name); err != nil {
				if errors.Is(err, db.ErrGroupNotFound) {
					return fmt.Errorf("группа %s не найдена", name)
				}
				return err
			}
			call.Reply(fmt.Sprintf("%s добавлен в группу %s", user, name))
		case "remove":
			if err := deps.Store.RemoveUserFromGroup(ctx, user, name); err != nil {
				return err
			}
			call.Reply(fmt.Sprintf("%s удалён из группы %s", user, name))
		default:
			return fmt.Errorf("неизвестное действие %q, ожидается add или remove", action)
		}
		return nil
	}
}

func pace(deps Deps) command.Handler {
	return func(_ context.Context, call *command.Call) error {
		kind := types.ParseChannelKind(call.Arg(0))
		ms, err := strconv.Atoi(call.Arg(1))
		if err != nil || ms < 0 {
			return fmt.Errorf("некорректная задержка %q", call.Arg(1))
		}
		if err := deps.Queue.SetPace(kind, time.Duration(ms)*time.Millisecond); err != nil {
			return err
		}
		call.Reply(fmt.Sprintf("Задержка %s: %d мс", kind, ms))
		return nil
	}
}
