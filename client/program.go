package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/JRI98/incognitostickers/client/database"
	"github.com/JRI98/incognitostickers/internal/api"
	"github.com/JRI98/incognitostickers/internal/contacts"
	"github.com/JRI98/incognitostickers/internal/identity"
	"github.com/JRI98/incognitostickers/internal/listdiff"
	"github.com/JRI98/incognitostickers/internal/stickers"
	"github.com/samber/lo"
	"golang.org/x/term"
)

// A grid cell is "*123 😀  " wide on screen.
const cellWidth = 9

type Program struct {
	database *database.Database
	stdin    *bufio.Reader
	context  context.Context
	api      *api.Client
	account  database.Account
}

func (program *Program) readInput() (string, error) {
	text, err := program.stdin.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// readChoice reads a 1-based number up to n and returns it 0-based. An empty
// line means go back.
func (program *Program) readChoice(n int) (int, bool, error) {
	for {
		fmt.Printf("Enter number (or nothing to go back): ")
		input, err := program.readInput()
		if err != nil {
			return 0, false, err
		}
		if input == "" {
			return 0, false, nil
		}

		choice, err := strconv.Atoi(input)
		if err != nil || choice < 1 || choice > n {
			fmt.Println("Invalid choice")
			continue
		}
		return choice - 1, true, nil
	}
}

func (program *Program) waitForEnter() error {
	fmt.Print("Press enter to return...")
	_, err := program.readInput()
	return err
}

func (program *Program) mainScreen() error {
	for {
		clearScreen()

		fmt.Printf("Signed in as %s\n", program.account.Name)
		fmt.Println("1. Get Chats")
		fmt.Println("2. New Message")
		fmt.Println("3. Quit")
		fmt.Print("> ")
		action, err := program.readInput()
		if err != nil {
			return err
		}

		switch action {
		case "1":
			if err := program.chatsScreen(); err != nil {
				return fmt.Errorf("chats screen error: %w", err)
			}
		case "2":
			if err := program.composeScreen(); err != nil {
				return fmt.Errorf("compose screen error: %w", err)
			}
		case "3":
			clearScreen()
			return nil
		}
	}
}

func (program *Program) chatsScreen() error {
	for {
		clearScreen()

		chats, err := program.database.GetChats(program.context)
		if err != nil {
			return fmt.Errorf("failed to get chats: %w", err)
		}

		if len(chats) == 0 {
			fmt.Println("No chats")
			return program.waitForEnter()
		}

		for i, chat := range chats {
			fmt.Printf("%d. %s\n", i+1, chat.Title)
		}

		index, ok, err := program.readChoice(len(chats))
		if err != nil || !ok {
			return err
		}

		if err := program.chatScreen(chats[index].ChatID); err != nil {
			return fmt.Errorf("chat screen error: %w", err)
		}
	}
}

// composeScreen lists the new chat options above the peers matching the
// current search.
func (program *Program) composeScreen() error {
	var next func() error

	options := contacts.NewOptions(contacts.DefaultStrings)
	options.OpenCreateNewSecretChat = func() {
		next = func() error { return program.newSecretChatScreen(nil) }
	}
	unsupported := func() {
		next = func() error {
			fmt.Println("Only secret chats are supported")
			return program.waitForEnter()
		}
	}
	options.OpenCreateNewGroup = unsupported
	options.OpenCreateNewChannel = unsupported

	search := contacts.Search{
		Local:  program.database,
		Global: globalPeers{client: program.api},
	}

	var summary string
	list := &contacts.List{}
	list.OnTransition = func(transition listdiff.Transition[contacts.Entry]) {
		summary = fmt.Sprintf("%d added, %d removed, %d changed",
			len(transition.Insertions), len(transition.Deletions), len(transition.Updates))
	}
	list.OpenPeer = func(peerID contacts.PeerID) {
		peer, ok := lo.Find(list.Entries(), func(entry contacts.Entry) bool {
			return entry.Peer.ID == peerID
		})
		if !ok {
			return
		}
		next = func() error { return program.openPeer(peer.Peer) }
	}
	list.DeactivateSearch = func() {
		summary = ""
	}

	showContacts := func() error {
		peers, err := program.database.SearchContacts(program.context, "")
		if err != nil {
			return err
		}
		list.UpdatePeers(peers)
		return nil
	}
	if err := showContacts(); err != nil {
		return err
	}

	for {
		clearScreen()

		optionList := options.List()
		for i, option := range optionList {
			fmt.Printf("%d. %s\n", i+1, option.Title)
		}
		entries := list.Entries()
		for i, entry := range entries {
			source := "contact"
			if entry.Peer.Source == contacts.Global {
				source = "global"
			}
			fmt.Printf("%d. %s (%s)\n", len(optionList)+i+1, entry.Peer.Name, source)
		}
		if summary != "" {
			fmt.Printf("[%s]\n", summary)
		}

		fmt.Print("Number, /query to search, / to clear, or nothing to go back: ")
		input, err := program.readInput()
		if err != nil {
			return err
		}

		switch {
		case input == "":
			return nil
		case input == "/":
			list.CancelSearch()
			if err := showContacts(); err != nil {
				return err
			}
			continue
		case strings.HasPrefix(input, "/"):
			list.ActivateSearch()
			peers, err := search.Query(program.context, strings.TrimPrefix(input, "/"))
			if err != nil {
				return fmt.Errorf("failed to search peers: %w", err)
			}
			list.UpdatePeers(peers)
			continue
		}

		choice, err := strconv.Atoi(input)
		if err != nil || choice < 1 || choice > len(optionList)+len(entries) {
			continue
		}

		next = nil
		if choice <= len(optionList) {
			optionList[choice-1].Action()
		} else if err := list.Select(choice - len(optionList) - 1); err != nil {
			return err
		}

		if next != nil {
			if err := next(); err != nil {
				return err
			}
		}
	}
}

func (program *Program) openPeer(peer contacts.Peer) error {
	chat, err := program.database.GetChatByPeer(program.context, peer.PublicIdentityKey)
	if errors.Is(err, database.ErrNotFound) {
		return program.newSecretChatScreen(&peer)
	}
	if err != nil {
		return err
	}
	return program.chatScreen(chat.ChatID)
}

// newSecretChatScreen exchanges handshake info with the peer and registers a
// fresh identity that only the peer may message. When expected is set, the
// peer's handshake must carry expected's account key.
func (program *Program) newSecretChatScreen(expected *contacts.Peer) error {
	clearScreen()

	publicIdentityKey, privateIdentityKey, err := identity.Generate()
	if err != nil {
		return fmt.Errorf("failed to generate keys: %w", err)
	}

	ecdhPrivateKey, err := identity.GenerateECDH()
	if err != nil {
		return err
	}

	myHandshake := identity.Handshake{
		AccountPublicKey:  identity.Public(program.account.PrivateIdentityKey),
		PublicIdentityKey: publicIdentityKey,
		ECDHPublicKey:     ecdhPrivateKey.PublicKey(),
	}
	fmt.Println("My public handshake info:", myHandshake)

	fmt.Print("Peer public handshake info: ")
	input, err := program.readInput()
	if err != nil {
		return err
	}

	peerHandshake, err := identity.ParseHandshake(input)
	if err != nil {
		fmt.Println(err)
		return program.waitForEnter()
	}

	var name string
	if expected != nil {
		if !bytes.Equal(peerHandshake.AccountPublicKey, expected.PublicIdentityKey) {
			fmt.Printf("Handshake info does not belong to %s\n", expected.Name)
			return program.waitForEnter()
		}
		name = expected.Name
	} else {
		fmt.Print("Name: ")
		name, err = program.readInput()
		if err != nil {
			return err
		}
	}

	err = program.api.WithKey(privateIdentityKey).Register(program.context, api.RegisterData{
		PublicIdentityKeys: [][]byte{peerHandshake.PublicIdentityKey},
	})
	if err != nil {
		return fmt.Errorf("failed to register: %w", err)
	}

	var chatID int64
	err = program.database.WithTx(program.context, func(tx *database.Database) error {
		if err := tx.AddContact(program.context, peerHandshake.AccountPublicKey, name); err != nil {
			return err
		}

		chatID, err = tx.CreateChat(program.context, database.Chat{
			Title:                 name,
			PrivateIdentityKey:    privateIdentityKey,
			PeerAccountPublicKey:  peerHandshake.AccountPublicKey,
			PeerPublicIdentityKey: peerHandshake.PublicIdentityKey,
			PeerECDHPublicKey:     peerHandshake.ECDHPublicKey,
			MyECDHPrivateKey:      ecdhPrivateKey,
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to create chat: %w", err)
	}

	return program.chatScreen(chatID)
}

func (program *Program) chatScreen(chatID int64) error {
	chat, err := program.database.GetChat(program.context, chatID)
	if err != nil {
		return fmt.Errorf("failed to get chat: %w", err)
	}
	session := newChatSession(program.database, program.api, chat)

	for {
		clearScreen()

		fmt.Println(chat.Title)
		fmt.Println("1. View Messages")
		fmt.Println("2. Send Sticker")
		fmt.Println("3. Go Back")
		fmt.Print("> ")
		action, err := program.readInput()
		if err != nil {
			return err
		}

		switch action {
		case "1":
			if err := program.messagesScreen(session); err != nil {
				return fmt.Errorf("messages screen error: %w", err)
			}
		case "2":
			if err := program.stickersScreen(session); err != nil {
				return fmt.Errorf("stickers screen error: %w", err)
			}
		case "3":
			clearScreen()
			return nil
		}
	}
}

func (program *Program) messagesScreen(session *chatSession) error {
	clearScreen()

	if err := session.fetchLatestMessages(program.context); err != nil {
		return fmt.Errorf("failed to fetch latest messages: %w", err)
	}

	messages, err := program.database.GetMessages(program.context, session.chat.ChatID)
	if err != nil {
		return fmt.Errorf("failed to get messages: %w", err)
	}

	fmt.Println(session.chat.Title)

	if len(messages) == 0 {
		fmt.Println("No messages")
		return program.waitForEnter()
	}

	myPublicIdentityKey := identity.Public(session.chat.PrivateIdentityKey)
	for _, message := range messages {
		sender := session.chat.Title
		if bytes.Equal(message.PublicIdentityKey, myPublicIdentityKey) {
			sender = "You"
		}
		fmt.Printf("(%s) %s\n", sender, message.Content)
	}

	fmt.Println()
	return program.waitForEnter()
}

func terminalViewport() stickers.Viewport {
	width, height, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		width, height = 80, 24
	}
	return stickers.Viewport{
		Width:  float64(width/cellWidth) * stickers.ItemSize,
		Height: float64(height) * stickers.ItemSize,
	}
}

// stickersScreen suggests stickers for a typed emoji. Every new result set
// goes through the panel, which keeps the grid in step with the results.
func (program *Program) stickersScreen(session *chatSession) error {
	store := savedStore{database: program.database, remote: program.api}
	if err := store.sync(program.context); err != nil {
		return fmt.Errorf("failed to sync saved stickers: %w", err)
	}

	panel := stickers.NewPanel(stickers.DefaultStrings)
	viewport := terminalViewport()
	if err := panel.SetViewport(viewport); err != nil {
		return err
	}

	controller := chatController{program: program, session: session, packs: program.api}

	var emoji string
	refresh := func() error {
		files, err := program.api.SearchStickers(program.context, emoji)
		if err != nil {
			return err
		}
		return panel.UpdateResults(api.Files(files))
	}

	for {
		if emoji == "" {
			clearScreen()
			fmt.Print("Emoji (or nothing to go back): ")
			input, err := program.readInput()
			if err != nil {
				return err
			}
			if input == "" {
				return nil
			}
			emoji = input
			if err := refresh(); err != nil {
				return err
			}
		}

		clearScreen()
		items := panel.Items()
		if len(items) == 0 {
			fmt.Printf("No stickers for %s\n", emoji)
		}
		fmt.Print(renderGrid(panel, viewport.Columns()))

		fmt.Print("Number to send, p<number> to preview, or nothing for another emoji: ")
		input, err := program.readInput()
		if err != nil {
			return err
		}

		preview := strings.HasPrefix(input, "p")
		choice, err := strconv.Atoi(strings.TrimPrefix(input, "p"))
		if input == "" || err != nil || choice < 1 || choice > len(items) {
			emoji = ""
			continue
		}

		if !preview {
			if err := controller.SendSticker(program.context, items[choice-1].File); err != nil {
				return err
			}
			return nil
		}

		if err := program.peekScreen(panel, choice-1, controller, store); err != nil {
			return err
		}
		if err := refresh(); err != nil {
			return err
		}
	}
}

func (program *Program) peekScreen(panel *stickers.Panel, index int, controller chatController, store savedStore) error {
	content, err := panel.PeekMenu(program.context, index, controller, store)
	if err != nil {
		return err
	}

	panel.SetPreviewedItem(&content.File)
	defer panel.SetPreviewedItem(nil)

	clearScreen()
	fmt.Print(renderGrid(panel, terminalViewport().Columns()))
	fmt.Printf("\n%s  %s\n", content.File.Emoji, content.File.ID)
	for i, item := range content.Menu {
		title := item.Title
		if item.Bold {
			title = strings.ToUpper(title)
		}
		if item.Color == stickers.ColorDestructive {
			title = "! " + title
		}
		fmt.Printf("%d. %s\n", i+1, title)
	}

	choice, ok, err := program.readChoice(len(content.Menu))
	if err != nil || !ok {
		return err
	}

	err = content.Menu[choice].Action(program.context)
	if errors.Is(err, stickers.ErrNoPack) {
		fmt.Println("This sticker has no pack")
		return program.waitForEnter()
	}
	return err
}

type globalPeers struct {
	client *api.Client
}

func (g globalPeers) SearchPeers(ctx context.Context, query string) ([]contacts.Peer, error) {
	peers, err := g.client.SearchPeers(ctx, query)
	if err != nil {
		return nil, err
	}
	return lo.Map(peers, func(peer api.Peer, _ int) contacts.Peer {
		return peer.Contact()
	}), nil
}
