package contacts

type Strings struct {
	NewGroup         string
	NewEncryptedChat string
	NewChannel       string
}

var DefaultStrings = Strings{
	NewGroup:         "New Group",
	NewEncryptedChat: "New Secret Chat",
	NewChannel:       "New Channel",
}

type Option struct {
	Title  string
	Action func()
}

// Options are the actions listed above the peers. The callbacks are looked up
// when an option is chosen, so they can be set after the options are built.
type Options struct {
	strings Strings

	OpenCreateNewGroup      func()
	OpenCreateNewSecretChat func()
	OpenCreateNewChannel    func()
}

func NewOptions(strings Strings) *Options {
	return &Options{strings: strings}
}

func (o *Options) List() []Option {
	call := func(f *func()) func() {
		return func() {
			if *f != nil {
				(*f)()
			}
		}
	}

	return []Option{
		{Title: o.strings.NewGroup, Action: call(&o.OpenCreateNewGroup)},
		{Title: o.strings.NewEncryptedChat, Action: call(&o.OpenCreateNewSecretChat)},
		{Title: o.strings.NewChannel, Action: call(&o.OpenCreateNewChannel)},
	}
}
