package core

import "regexp"

var (
	groupNamePattern = regexp.MustCompile(`^[A-Z]+$`)
	userNamePattern  = regexp.MustCompile(`^\w+$`)
)

// Sign is the optional prefix of a membership token.
type Sign int

const (
	SignNone Sign = iota
	SignPlus
	SignMinus
)

// TokenKind tells what a membership token refers to.
type TokenKind int

const (
	KindUnknown TokenKind = iota
	KindUser
	KindGroup
)

// Token is a parsed membership token such as "+Alice" or "-TEAM".
type Token struct {
	Sign Sign
	Name string
	Kind TokenKind
}

// ParseToken splits the optional sign off raw and classifies the rest.
// All-uppercase letters name a group, any other word names a user.
func ParseToken(raw string) Token {
	tok := Token{Name: raw}
	if len(raw) > 0 {
		switch raw[0] {
		case '+':
			tok.Sign, tok.Name = SignPlus, raw[1:]
		case '-':
			tok.Sign, tok.Name = SignMinus, raw[1:]
		}
	}
	switch {
	case IsGroupName(tok.Name):
		tok.Kind = KindGroup
	case userNamePattern.MatchString(tok.Name):
		tok.Kind = KindUser
	}
	return tok
}

// IsGroupName reports whether name follows the group naming convention.
func IsGroupName(name string) bool {
	return groupNamePattern.MatchString(name)
}

// IsUserName reports whether name can name a user when it stands alone, as
// the borrower or lender of a transaction. Inside token lists an all-uppercase
// name still refers to a group.
func IsUserName(name string) bool {
	return userNamePattern.MatchString(name)
}
