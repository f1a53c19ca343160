package readme

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type EmbedSuite struct {
	suite.Suite
}

func TestEmbedSuite(t *testing.T) {
	suite.Run(t, new(EmbedSuite))
}

func (s *EmbedSuite) TestContentNotEmpty() {
	require.NotEmpty(s.T(), Content)
}

func (s *EmbedSuite) TestContentIsMarkdown() {
	require.Contains(s.T(), Content, "# ")
}

func (s *EmbedSuite) TestContentDescribesBlockmind() {
	require.Contains(s.T(), Content, "# blockmind")
	require.Contains(s.T(), Content, "blockmind serve")
	require.Contains(s.T(), Content, "commands_dir")
}
